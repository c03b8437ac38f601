package events

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength   = 6
)

// ErrCodeSpaceExhausted is returned when every attempt hit an existing code.
var ErrCodeSpaceExhausted = errors.New("could not generate a unique event code")

// CodeGenerator produces event codes and PINs. exists is the uniqueness
// check, normally backed by the event store.
type CodeGenerator struct {
	exists      func(ctx context.Context, code string) (bool, error)
	intn        func(n int) int
	maxAttempts int
}

// NewCodeGenerator returns a generator using crypto/rand.
func NewCodeGenerator(exists func(ctx context.Context, code string) (bool, error)) *CodeGenerator {
	return &CodeGenerator{exists: exists, intn: secureIntn, maxAttempts: 10}
}

func secureIntn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	return int(v.Int64())
}

func (g *CodeGenerator) candidate() string {
	var b strings.Builder
	b.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[g.intn(len(codeAlphabet))])
	}
	return b.String()
}

// EventCode returns a 6-character uppercase base-36 code not yet in use.
func (g *CodeGenerator) EventCode(ctx context.Context) (string, error) {
	for i := 0; i < g.maxAttempts; i++ {
		code := g.candidate()
		taken, err := g.exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// PIN returns a 4-digit code, zero padded.
func (g *CodeGenerator) PIN() string {
	return fmt.Sprintf("%04d", g.intn(10000))
}

// IsEventCode reports whether s has the event code shape.
func IsEventCode(s string) bool {
	if len(s) != codeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(s[i])) {
			return false
		}
	}
	return true
}
