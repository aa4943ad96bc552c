package progress

// UnknownSize marks an expected byte count that the transport did not report.
const UnknownSize int64 = -1

// Snapshot is a point-in-time view of a single transfer.
type Snapshot struct {
	Received int64 // bytes written so far
	Expected int64 // total bytes, or UnknownSize
}

// Known reports whether the expected size is known.
func (s Snapshot) Known() bool {
	return s.Expected > 0
}

// Fraction returns received/expected clamped to [0, 1], or 0 when the
// expected size is unknown.
func (s Snapshot) Fraction() float64 {
	if s.Expected <= 0 {
		return 0
	}
	f := float64(s.Received) / float64(s.Expected)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Done reports whether every expected byte has been received.
func (s Snapshot) Done() bool {
	return s.Known() && s.Received >= s.Expected
}

// Func receives snapshots as a transfer makes progress.
type Func func(Snapshot)
