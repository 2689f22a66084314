// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package grammar

// Permutations enumerates every sequence of length digits over the symbols
// 0..symbols-1, in counting order.
//
// Example:
//
//	Permutations(2, 3) // [[0 0] [0 1] [0 2] [1 0] ... [2 2]]
func Permutations(digits, symbols int) [][]int {
	if digits <= 0 || symbols <= 0 {
		return nil
	}
	total := 1
	for i := 0; i < digits; i++ {
		total *= symbols
	}
	all := make([][]int, 0, total)
	for n := 0; n < total; n++ {
		p := make([]int, digits)
		rest := n
		for pos := digits - 1; pos >= 0; pos-- {
			p[pos] = rest % symbols
			rest /= symbols
		}
		all = append(all, p)
	}
	return all
}

// Masks returns every rights mask of exactly length letters drawn from
// RightsAlphabet, repeats included.
func Masks(length int) []string {
	perms := Permutations(length, len(RightsAlphabet))
	masks := make([]string, 0, len(perms))
	for _, p := range perms {
		buf := make([]byte, len(p))
		for i, idx := range p {
			buf[i] = RightsAlphabet[idx]
		}
		masks = append(masks, string(buf))
	}
	return masks
}
