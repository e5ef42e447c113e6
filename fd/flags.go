package fd

/// Access-mode and open-flag bits, matching POSIX open(2) semantics per
/// original_source/kernel/fs/open.c. O_ACCMODE masks the three mutually
/// exclusive access-mode bits out of flags that may also carry O_CREAT
/// and/or O_APPEND.
const (
	O_RDONLY = 0x0
	O_WRONLY = 0x1
	O_RDWR   = 0x2
	O_ACCMODE = 0x3

	O_CREAT  = 0x40
	O_APPEND = 0x400
)

/// lseek whence values.
const (
	SEEK_SET = 0
	SEEK_CUR = 1
	SEEK_END = 2
)

/// Descriptor permission bits, as stored per-open-file in Table_t.
const (
	FD_READ  = 0x1
	FD_WRITE = 0x2
)
