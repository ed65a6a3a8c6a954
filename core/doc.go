// Package core holds the small identifier types shared by every rendercore
// package.
//
// Identifiers are 32-bit values. Names such as pass types, channels or
// material techniques are turned into ids with [NewStringID], a 32-bit
// FNV-1a hash, so binary assets can reference them without strings.
package core
