package token

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/suite"
)

type GeneratorSuite struct {
	suite.Suite
	gen *Generator
}

func TestGeneratorSuite(t *testing.T) {
	suite.Run(t, new(GeneratorSuite))
}

func (s *GeneratorSuite) SetupTest() {
	s.gen = NewGenerator(0, 0)
}

var urlSafe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func (s *GeneratorSuite) TestDefaults() {
	s.Equal(DefaultCodeBytes, s.gen.CodeBytes)
	s.Equal(DefaultAccessTokenBytes, s.gen.AccessTokenBytes)
}

func (s *GeneratorSuite) TestCodeLength() {
	code, err := s.gen.NewCode()
	s.Require().NoError(err)
	s.Len(code, 22)
	s.Regexp(urlSafe, code)
}

func (s *GeneratorSuite) TestAccessTokenLength() {
	tok, err := s.gen.NewAccessToken()
	s.Require().NoError(err)
	s.Len(tok, 342)
	s.Equal(EncodedLen(DefaultAccessTokenBytes), len(tok))
	s.Regexp(urlSafe, tok)
}

func (s *GeneratorSuite) TestValuesDoNotRepeat() {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		code, err := s.gen.NewCode()
		s.Require().NoError(err)
		_, dup := seen[code]
		s.Require().False(dup, "duplicate code generated")
		seen[code] = struct{}{}
	}
}

func (s *GeneratorSuite) TestCustomLengths() {
	gen := NewGenerator(32, 64)
	code, err := gen.NewCode()
	s.Require().NoError(err)
	s.Len(code, EncodedLen(32))

	tok, err := gen.NewAccessToken()
	s.Require().NoError(err)
	s.Len(tok, EncodedLen(64))
}

func (s *GeneratorSuite) TestRejectsNonPositiveLength() {
	_, err := Opaque(0)
	s.Error(err)
}

func (s *GeneratorSuite) TestMaxBytesFitsColumns() {
	for _, limit := range []int{MaxCodeLen, MaxAccessTokenLen} {
		n := MaxBytes(limit)
		s.LessOrEqual(EncodedLen(n), limit)
		s.Greater(EncodedLen(n+1), limit)
	}
	s.Equal(191, MaxBytes(MaxCodeLen))
	s.Equal(384, MaxBytes(MaxAccessTokenLen))
}
