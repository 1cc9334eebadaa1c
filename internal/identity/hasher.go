// Package identity derives stable, non-reversible fingerprints for the
// operator and the host machine.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/user"
	"runtime"
)

// StudentIDEnv overrides the operator identifier when set.
const StudentIDEnv = "QWEN_STUDENT_ID"

// anonymousID is used when no operator identifier can be resolved.
const anonymousID = "anonymous"

// Fingerprint returns the first 16 hex characters of the sha256 digest of s.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// OperatorID resolves the operator identifier: the QWEN_STUDENT_ID
// environment variable, falling back to the OS user name, falling back
// to "anonymous".
func OperatorID() string {
	if id := os.Getenv(StudentIDEnv); id != "" {
		return id
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return anonymousID
}

// OperatorHash returns the operator fingerprint.
func OperatorHash() string {
	return Fingerprint(OperatorID())
}

// MachineHash returns a fingerprint of the host: hostname, platform,
// processor architecture, and home directory concatenated and hashed.
func MachineHash() string {
	hostname, _ := os.Hostname()
	home, _ := os.UserHomeDir()
	return Fingerprint(hostname + runtime.GOOS + runtime.GOARCH + home)
}
