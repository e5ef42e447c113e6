// Package ustr provides the immutable path/string type used throughout
// the VFS layer.
package ustr

// Ustr is a path or path-component string. Pathname walking slices it
// rather than allocating, so it is a byte slice rather than a string.
type Ustr []byte

/// Isdot reports whether the string equals ".".
func (us Ustr) Isdot() bool {
	return len(us) == 1 && us[0] == '.'
}

/// Isdotdot reports whether the string equals "..".
func (us Ustr) Isdotdot() bool {
	return len(us) == 2 && us[0] == '.' && us[1] == '.'
}

/// Eq compares two Ustr values for equality.
func (us Ustr) Eq(s Ustr) bool {
	if len(us) != len(s) {
		return false
	}
	for i, v := range us {
		if v != s[i] {
			return false
		}
	}
	return true
}

/// MkUstr creates an empty Ustr value.
func MkUstr() Ustr {
	return Ustr{}
}

/// MkUstrRoot returns a Ustr representing "/".
func MkUstrRoot() Ustr {
	return Ustr("/")
}

/// MkUstrDot returns a Ustr representing ".".
func MkUstrDot() Ustr {
	return Ustr(".")
}

/// DotDot is a reusable Ustr containing "..".
var DotDot = Ustr{'.', '.'}

/// IsAbsolute reports whether the path begins with '/'.
func (us Ustr) IsAbsolute() bool {
	return len(us) > 0 && us[0] == '/'
}

/// String converts the Ustr to a Go string, mainly for error messages.
func (us Ustr) String() string {
	return string(us)
}
