package testbench

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sarchlab/cputester/insts"
)

const (
	maxTag      = 10000000
	tagAttempts = 100
)

// FailureStore persists failing programs as a pair of files sharing a
// random tag: {tag}_bin holds one encoded word per line and {tag}_asm one
// assembly line per instruction.
type FailureStore struct {
	dir string
	rng *rand.Rand
}

// NewFailureStore creates a store writing into dir. The directory is
// created on the first Save.
func NewFailureStore(dir string, rng *rand.Rand) *FailureStore {
	return &FailureStore{dir: dir, rng: rng}
}

// Dir returns the failure directory.
func (s *FailureStore) Dir() string {
	return s.dir
}

// Save writes the artifact pair for program and returns its tag.
func (s *FailureStore) Save(program []insts.Instruction) (string, error) {
	bin, err := insts.EncodeProgram(program)
	if err != nil {
		return "", fmt.Errorf("failed to encode program: %w", err)
	}
	asm := insts.AsmProgram(program)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create failure directory: %w", err)
	}

	tag, err := s.freshTag()
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(s.BinPath(tag), []byte(bin), 0o644); err != nil {
		return "", fmt.Errorf("failed to write binary artifact: %w", err)
	}
	if err := os.WriteFile(s.AsmPath(tag), []byte(asm), 0o644); err != nil {
		return "", fmt.Errorf("failed to write assembly artifact: %w", err)
	}

	return tag, nil
}

// BinPath returns the path of the binary artifact for tag.
func (s *FailureStore) BinPath(tag string) string {
	return filepath.Join(s.dir, tag+"_bin")
}

// AsmPath returns the path of the assembly artifact for tag.
func (s *FailureStore) AsmPath(tag string) string {
	return filepath.Join(s.dir, tag+"_asm")
}

// freshTag draws tags until one names no existing artifact.
func (s *FailureStore) freshTag() (string, error) {
	for range tagAttempts {
		tag := strconv.Itoa(s.rng.Intn(maxTag + 1))

		_, err := os.Stat(s.BinPath(tag))
		if errors.Is(err, os.ErrNotExist) {
			return tag, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check artifact %s: %w", tag, err)
		}
	}

	return "", fmt.Errorf("no free artifact tag after %d attempts", tagAttempts)
}
