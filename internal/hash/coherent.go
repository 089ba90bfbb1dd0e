package hash

import "crypto/md5"

// Coherent returns the integer value of the last 24 bits of md5(name).
//
// The value only depends on the UTF-8 bytes of name, so block assignment is
// identical across processes, platforms and builds.
func Coherent(name string) uint32 {
	sum := md5.Sum([]byte(name))
	return uint32(sum[13])<<16 | uint32(sum[14])<<8 | uint32(sum[15])
}

// Bucket returns Coherent(name) mod n. n must be positive.
func Bucket(name string, n int) int {
	return int(Coherent(name) % uint32(n))
}
