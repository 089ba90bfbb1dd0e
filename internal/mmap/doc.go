// Package mmap maps artifact files read-only into memory.
//
//	m, err := mmap.Open("articles/0000002a.cdp")
//	if err != nil { ... }
//	defer m.Close()
//	data := m.Bytes()
//
// Unix platforms use mmap(2) with madvise(2) hints. Other platforms fall
// back to reading the whole file into memory behind the same API.
package mmap
