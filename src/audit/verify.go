package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// VerifyResult holds the outcome of a hash chain verification.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// Verify reads an audit log and walks its hash chain. It reports the
// first broken link: a tampered, inserted, or deleted line invalidates
// every following prev_hash.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	var (
		lineNum int
		prev    []byte
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNum++
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return VerifyResult{
				Error:     fmt.Sprintf("parse error: %v", err),
				ErrorLine: lineNum,
			}
		}

		want := GenesisHash
		if lineNum > 1 {
			want = HashLine(prev)
		}
		if ev.PrevHash != want {
			return VerifyResult{
				Error:     fmt.Sprintf("hash mismatch: expected %s, got %s", want, ev.PrevHash),
				ErrorLine: lineNum,
			}
		}

		prev = line
	}
	if err := scanner.Err(); err != nil {
		return VerifyResult{Error: fmt.Sprintf("scan: %v", err)}
	}

	return VerifyResult{Valid: true, Lines: lineNum}
}
