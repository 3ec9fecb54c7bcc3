package models

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

type PageInfo struct {
	StartCursor string `json:"startCursor"`
	EndCursor   string `json:"endCursor"`
	HasNextPage *bool  `json:"hasNextPage,omitempty"`
}

// cursor = base64("<column value>|<id>")
func DecodeCompositeCursor(cursor *string) (string, int) {
	if cursor == nil || *cursor == "" {
		return "", 0
	}

	decoded, err := base64.StdEncoding.DecodeString(*cursor)
	if err != nil {
		return "", 0
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return "", 0
	}

	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0
	}

	return parts[0], id
}

func EncodeCompositeCursor(value string, id int) string {
	cursor := fmt.Sprintf("%s|%d", value, id)
	return base64.StdEncoding.EncodeToString([]byte(cursor))
}

// normalizes the page size requested by callers
func pageLimit(limit *int) int {
	if limit == nil || *limit <= 0 {
		return 20
	}
	if *limit > 200 {
		return 200
	}
	return *limit
}
