package projection

import "strings"

// PathSeparator separates segments of a source path
const PathSeparator = "."

// Resolve walks record along a dot-separated path and returns the scalar at
// its end. Missing segments, non-mapping intermediates and non-scalar
// leaves all resolve to absent.
func Resolve(record Record, path string) (Scalar, bool) {
	if record == nil || path == "" {
		return Scalar{}, false
	}

	segments := strings.Split(path, PathSeparator)
	current := record
	last := len(segments) - 1
	for i, segment := range segments {
		v, ok := current[segment]
		if !ok {
			return Scalar{}, false
		}
		if i == last {
			return ScalarOf(v)
		}
		next, ok := asRecord(v)
		if !ok {
			return Scalar{}, false
		}
		current = next
	}
	return Scalar{}, false
}
