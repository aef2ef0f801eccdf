/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: errors.go
Description: Error values returned by bit stream reads.
*/

package bitstream

import (
	"errors"
	"fmt"
)

// ErrInsufficientData matches every InsufficientDataError via errors.Is
var ErrInsufficientData = errors.New("bitstream: insufficient data")

// InsufficientDataError reports a read that needed more bits than remain
type InsufficientDataError struct {
	Requested uint64 // bits requested
	Remaining uint64 // bits left in the stream
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("bitstream: insufficient data: requested %d bits, %d remaining", e.Requested, e.Remaining)
}

// Is lets errors.Is match ErrInsufficientData
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}
