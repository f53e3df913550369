package bip

import (
	"fmt"
	"strconv"
	"strings"
)

// ToEnd is the Range sentinel for "the natural end in the direction of Step".
// As a Stop with a negative Step it means "down to and including index 0";
// as a Start with a negative Step it means "from the last index".
const ToEnd = -1

// Range selects indices Start, Start+Step, ... up to but excluding Stop.
// A zero Step is treated as 1.
type Range struct {
	Start int
	Stop  int
	Step  int
}

// All selects a whole axis.
func All() Range { return Range{Start: 0, Stop: ToEnd, Step: 1} }

// Reversed selects a whole axis back to front.
func Reversed() Range { return Range{Start: ToEnd, Stop: ToEnd, Step: -1} }

// Span selects [start, stop) with unit step.
func Span(start, stop int) Range { return Range{Start: start, Stop: stop, Step: 1} }

func (r Range) String() string {
	part := func(v int) string {
		if v == ToEnd {
			return ""
		}
		return strconv.Itoa(v)
	}
	return part(r.Start) + ":" + part(r.Stop) + ":" + strconv.Itoa(r.step())
}

func (r Range) step() int {
	if r.Step == 0 {
		return 1
	}
	return r.Step
}

// ParseRange parses slice notation "start:stop:step" where every part is
// optional, so ":" is the whole axis and "::-1" the whole axis reversed.
// A single integer "i" selects index i alone.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return All(), nil
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return Range{}, fmt.Errorf("%w: range %q has more than three parts", ErrOutOfRange, s)
	}
	vals := [3]int{ToEnd, ToEnd, 1}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return Range{}, fmt.Errorf("%w: range %q: %v", ErrOutOfRange, s, err)
		}
		vals[i] = v
	}
	if len(parts) == 1 {
		return Span(vals[0], vals[0]+1), nil
	}
	if vals[2] > 0 && vals[0] == ToEnd {
		vals[0] = 0
	}
	return Range{Start: vals[0], Stop: vals[1], Step: vals[2]}, nil
}

// span is a normalised selection: count indices first, first+step, ...
type span struct {
	first int
	step  int
	count int
}

// normalize resolves r against an axis of length n.
func (r Range) normalize(n int) (span, error) {
	step := r.step()
	start, stop := r.Start, r.Stop
	if step > 0 {
		if stop == ToEnd {
			stop = n
		}
		if start < 0 || start > n || stop < start || stop > n {
			return span{}, fmt.Errorf("%w: range %v on axis of length %d", ErrOutOfRange, r, n)
		}
		s := span{first: start, step: step, count: ceilDiv(stop-start, step)}
		if s.count == 0 {
			return span{}, fmt.Errorf("%w: range %v selects nothing", ErrOutOfRange, r)
		}
		return s, nil
	}
	if start == ToEnd {
		start = n - 1
	}
	if stop == ToEnd {
		stop = -1
	}
	if start < 0 || start >= n || stop > start {
		return span{}, fmt.Errorf("%w: range %v on axis of length %d", ErrOutOfRange, r, n)
	}
	s := span{first: start, step: step, count: ceilDiv(start-stop, -step)}
	if s.count == 0 {
		return span{}, fmt.Errorf("%w: range %v selects nothing", ErrOutOfRange, r)
	}
	return s, nil
}

func (s span) at(i int) int { return s.first + i*s.step }

func (s span) last() int { return s.at(s.count - 1) }

// lo and hi are the smallest and largest selected indices.
func (s span) lo() int { return min(s.first, s.last()) }
func (s span) hi() int { return max(s.first, s.last()) }

// reversed mirrors the selection on an axis of length n.
func (s span) reversed(n int) span {
	return span{first: n - 1 - s.first, step: -s.step, count: s.count}
}

// within returns the positions [i0, i1) of the selected indices that fall in [lo, hi).
// Selected indices are monotone, so the matching positions are contiguous.
func (s span) within(lo, hi int) (int, int) {
	var i0, i1 int
	if s.step > 0 {
		i0 = ceilDiv(lo-s.first, s.step)
		i1 = ceilDiv(hi-s.first, s.step)
	} else {
		i0 = ceilDiv(s.first-hi+1, -s.step)
		i1 = ceilDiv(s.first-lo+1, -s.step)
	}
	i0, i1 = min(i0, s.count), min(i1, s.count)
	if i1 < i0 {
		i1 = i0
	}
	return i0, i1
}

// local rebases positions [i0, i1) onto an axis starting at origin.
func (s span) local(i0, i1, origin int) span {
	return span{first: s.at(i0) - origin, step: s.step, count: i1 - i0}
}

// ceilDiv is ceil(a/b) for b > 0, clamped at zero.
func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Count returns how many indices r selects on an axis of length n.
func (r Range) Count(n int) (int, error) {
	s, err := r.normalize(n)
	if err != nil {
		return 0, err
	}
	return s.count, nil
}
