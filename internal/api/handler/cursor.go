package handler

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"

	"github.com/cuongbtq/jobstore/internal/api/storage"
)

const cursorPrefix = "id"

func DecodeJobCursor(cursorStr string) (*storage.JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	decodedParts := strings.Split(string(decoded), "|")
	if len(decodedParts) != 2 || decodedParts[0] != cursorPrefix {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var afterID int64
	if _, err := fmt.Sscanf(decodedParts[1], "%d", &afterID); err != nil {
		return nil, fmt.Errorf("invalid id in cursor: %w", err)
	}
	// no id can follow math.MaxInt64
	if afterID < 0 || afterID == math.MaxInt64 {
		return nil, fmt.Errorf("invalid id in cursor: %d", afterID)
	}

	return &storage.JobCursor{AfterID: afterID}, nil
}

func EncodeJobCursor(cursor *storage.JobCursor) string {
	cs := fmt.Sprintf("%s|%d", cursorPrefix, cursor.AfterID)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}
