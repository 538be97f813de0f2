package entity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MinBatchYear is the earliest accepted batch start.
	MinBatchYear = 1950
	// BatchLength is the conventional gap between start and end year.
	BatchLength = 7
	// batchEndSlack lets current students register a batch ending in the future.
	batchEndSlack = BatchLength
)

var ErrInvalidBatchFormat = errors.New("batch must look like YYYY-YYYY")

// BatchRange is the (start, end) year pair stored on every profile.
type BatchRange struct {
	Start int `json:"batch_start"`
	End   int `json:"batch_end"`
}

// ParseBatchRange parses "2017-2022". It checks the format only; see Validate.
func ParseBatchRange(s string) (BatchRange, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return BatchRange{}, ErrInvalidBatchFormat
	}

	start, err := parseYear(parts[0])
	if err != nil {
		return BatchRange{}, ErrInvalidBatchFormat
	}
	end, err := parseYear(parts[1])
	if err != nil {
		return BatchRange{}, ErrInvalidBatchFormat
	}

	return BatchRange{Start: start, End: end}, nil
}

func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return 0, ErrInvalidBatchFormat
	}
	return strconv.Atoi(s)
}

func (b BatchRange) String() string {
	return fmt.Sprintf("%d-%d", b.Start, b.End)
}

func (b BatchRange) IsZero() bool {
	return b.Start == 0 && b.End == 0
}

// Validate enforces start <= end, start >= 1950 and end <= now.Year()+7.
func (b BatchRange) Validate(now time.Time) error {
	if b.Start == 0 || b.End == 0 {
		return errors.New("both batch start and batch end are required")
	}
	if b.Start < MinBatchYear {
		return fmt.Errorf("batch start must be %d or later", MinBatchYear)
	}
	if b.Start > b.End {
		return errors.New("batch start must not be after batch end")
	}
	if maxEnd := now.Year() + batchEndSlack; b.End > maxEnd {
		return fmt.Errorf("batch end must be %d or earlier", maxEnd)
	}
	return nil
}
