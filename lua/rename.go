package lua

import (
	"errors"
	"math/rand"

	"github.com/wc3ts/luamin/parse/lua"
)

// ErrIdentifiersExhausted is returned when the random identifier pool runs out of names of the maximum length.
var ErrIdentifiersExhausted = errors.New("random identifiers exhausted")

// maxRandomLength is the longest random identifier, 52^5 names in total.
const maxRandomLength = 5

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

type allocator interface {
	next() (string, error)
}

// renamer maps original names to short names for the duration of one minification.
type renamer struct {
	alloc     allocator
	names     map[string]string // original => renamed
	inUse     map[string]bool   // renamed or protected names
	shortened map[string]bool   // globals confirmed safe to rename
	preserved map[string]bool
}

func newRenamer(alloc allocator) *renamer {
	return &renamer{
		alloc:     alloc,
		names:     map[string]string{},
		inUse:     map[string]bool{},
		shortened: map[string]bool{},
		preserved: map[string]bool{},
	}
}

// rename returns the short name of name, allocating one on first use.
func (r *renamer) rename(name string) (string, error) {
	if name == "self" {
		return name, nil
	} else if rename, ok := r.names[name]; ok {
		return rename, nil
	}

	for {
		rename, err := r.alloc.next()
		if err != nil {
			return "", err
		}
		if !r.isReserved(rename) {
			r.names[name] = rename
			r.inUse[rename] = true
			return rename, nil
		}
	}
}

func (r *renamer) isReserved(name string) bool {
	if name == "self" || 1 < len(name) && lua.IsKeyword(name) { // no keyword is one character long
		return true
	}
	return r.inUse[name]
}

// protect maps name to itself and excludes it from allocation.
func (r *renamer) protect(name string) {
	if name == "self" {
		return
	}
	r.names[name] = name
	r.inUse[name] = true
}

// preserve protects name permanently, it is never renamed.
func (r *renamer) preserve(name string) {
	r.protect(name)
	r.preserved[name] = true
}

// unprotect removes an earlier protection of a global, confirms it as safe to rename and renames it.
// Preserved names keep their protection.
func (r *renamer) unprotect(name string) (string, error) {
	if r.preserved[name] || name == "self" {
		return name, nil
	} else if rename, ok := r.names[name]; ok && rename == name {
		delete(r.names, name)
		delete(r.inUse, name)
	}
	r.shortened[name] = true
	return r.rename(name)
}

////////////////////////////////////////////////////////////////

// sequential generates names in the order a..z, A..Z, _, a0..a9, aa..a_, b0, ...
// Only the first character is restricted to letters and underscore.
type sequential struct {
	name []byte
}

func newSequential() *sequential {
	return &sequential{[]byte("9")} // so that the next is 'a'
}

func (s *sequential) next() (string, error) {
	name := s.name
	i := len(name) - 1
	for ; 0 <= i; i-- {
		if name[i] != '_' {
			switch name[i] {
			case '9':
				name[i] = 'a'
			case 'z':
				name[i] = 'A'
			case 'Z':
				name[i] = '_'
			default:
				name[i]++
			}
			break
		}
	}
	for j := i + 1; j < len(name); j++ {
		name[j] = '0'
	}
	if i < 0 {
		name[0] = 'a'
		name = append(name, '0')
	}
	s.name = name
	return string(name), nil
}

// random draws fixed-length names over the 52 letters in a seeded random order.
// The Fisher-Yates shuffle of each pool is performed lazily, one draw at a time.
type random struct {
	rng       *rand.Rand
	length    int
	maxLength int
	n         int         // pool size
	i         int         // names drawn from the pool
	swaps     map[int]int // displaced pool entries
}

func newRandom(seed int64) *random {
	return &random{
		rng:       rand.New(rand.NewSource(seed)),
		maxLength: maxRandomLength,
		n:         1,
		i:         1,
	}
}

func (r *random) next() (string, error) {
	if r.i == r.n {
		if r.length == r.maxLength {
			return "", ErrIdentifiersExhausted
		}
		r.length++
		r.n *= len(letters)
		r.i = 0
		r.swaps = map[int]int{}
	}

	j := r.i + r.rng.Intn(r.n-r.i)
	k := r.get(j)
	r.swaps[j] = r.get(r.i)
	delete(r.swaps, r.i)
	r.i++

	name := make([]byte, r.length)
	for p := len(name) - 1; 0 <= p; p-- {
		name[p] = letters[k%len(letters)]
		k /= len(letters)
	}
	return string(name), nil
}

func (r *random) get(k int) int {
	if v, ok := r.swaps[k]; ok {
		return v
	}
	return k
}
