package utils

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorUtilsSuite struct {
	suite.Suite
}

func TestErrorUtilsSuite(t *testing.T) {
	suite.Run(t, new(ErrorUtilsSuite))
}

func (s *ErrorUtilsSuite) TestWrapIfNotNilReturnsNilForNil() {
	s.NoError(WrapIfNotNil(nil, "ignored"))
}

func (s *ErrorUtilsSuite) TestWrapIfNotNilKeepsChainAndCaller() {
	base := errors.New("boom")

	wrapped := WrapIfNotNil(base, "loading config")

	s.ErrorIs(wrapped, base)
	s.Contains(wrapped.Error(), "utils.(*ErrorUtilsSuite).TestWrapIfNotNilKeepsChainAndCaller")
	s.Contains(wrapped.Error(), "loading config")
	s.NotContains(wrapped.Error(), "github.com/")
}

func (s *ErrorUtilsSuite) TestContainsErrorSubstringWalksChain() {
	err := fmt.Errorf("outer: %w", errors.New("Thinking level is not supported"))

	s.True(ContainsErrorSubstring(err, "Thinking level"))
	s.False(ContainsErrorSubstring(err, "quota"))
	s.False(ContainsErrorSubstring(nil, "anything"))
}

func (s *ErrorUtilsSuite) TestTruncateDiagnostic() {
	s.Equal("short", TruncateDiagnostic("  short \n"))

	long := strings.Repeat("x", maxDiagnosticLength+10)
	truncated := TruncateDiagnostic(long)
	s.True(strings.HasSuffix(truncated, "...(truncated)"))
	s.Len(truncated, maxDiagnosticLength+len("...(truncated)"))
}
