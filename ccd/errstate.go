package ccd

import (
	"fmt"
	"sync"
	"time"
)

// ErrorStringLength is the longest message an ErrorState keeps
const ErrorStringLength = 1024

// ErrorState holds the most recent failure of a session.
// It is safe for concurrent use.
type ErrorState struct {
	mu   sync.Mutex
	err  error
	code int
	msg  string
	when time.Time
}

// Set records err as the most recent failure.  A nil err is ignored; a
// success never clears a pending failure.
func (s *ErrorState) Set(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	if len(msg) > ErrorStringLength-1 {
		msg = msg[:ErrorStringLength-1]
	}
	s.mu.Lock()
	s.err = err
	s.code = CodeOf(err)
	s.msg = msg
	s.when = time.Now().UTC()
	s.mu.Unlock()
}

// IsError reports if a failure is pending
func (s *ErrorState) IsError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err != nil
}

// Peek returns the pending failure without clearing it
func (s *ErrorState) Peek() (code int, msg string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, s.msg, s.err
}

// Take returns the pending failure and clears it, so a second Take with no
// failure in between returns nil
func (s *ErrorState) Take() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.err
	s.err, s.code, s.msg = nil, 0, ""
	return err
}

// Report formats and clears the pending failure as
//  dd/mm/yyyy HH:MM:SS CCD_General:Error(code) : message
func (s *ErrorState) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	str := s.format()
	s.err, s.code, s.msg = nil, 0, ""
	return str
}

// String formats the pending failure like Report without clearing it
func (s *ErrorState) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format()
}

func (s *ErrorState) format() string {
	if s.err == nil {
		return "Error:CCD_General_Error:Error not found"
	}
	return fmt.Sprintf("%s CCD_General:Error(%d) : %s", s.when.Format("02/01/2006 15:04:05"), s.code, s.msg)
}
