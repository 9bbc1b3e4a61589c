package services

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// CaptchaService issues small arithmetic challenges. The answer is kept in the
// visitor's session; submissions must echo it back.
type CaptchaService struct {
	intn func(n int) int
}

func NewCaptchaService() *CaptchaService {
	return &CaptchaService{intn: rand.Intn}
}

// GenerateMathProblem returns a display string (e.g. "3 + 5") and the integer answer.
func (s *CaptchaService) GenerateMathProblem() (string, int) {
	a := s.intn(10) // 0-9
	b := s.intn(10) // 0-9

	if s.intn(2) == 0 {
		return fmt.Sprintf("%d + %d", a, b), a + b
	}
	// keep subtraction results non-negative
	if a < b {
		a, b = b, a
	}
	return fmt.Sprintf("%d - %d", a, b), a - b
}

// Verify compares the user's input with the stored answer.
func (s *CaptchaService) Verify(expected any, input string) bool {
	want, ok := expected.(int)
	if !ok {
		return false
	}
	got, err := strconv.Atoi(strings.TrimSpace(input))
	return err == nil && got == want
}
