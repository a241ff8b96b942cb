// Package backup provides LDIF export and import functionality for obastore.
package backup

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/KilimcininKorOglu/obastore/internal/storage/partition"
)

// LDIF errors.
var (
	ErrInvalidLDIF   = errors.New("invalid LDIF format")
	ErrMissingDN     = errors.New("missing DN in LDIF entry")
	ErrInvalidBase64 = errors.New("invalid base64 encoding")
	ErrEmptyReader   = errors.New("empty reader")
)

// UUIDAttribute carries the entryUUID of an exported entry.
const UUIDAttribute = "entryUUID"

// maxLineSize bounds a single logical LDIF line.
const maxLineSize = 1 << 20

// WriteEntry writes a single entry in LDIF format. Attributes are written in
// sorted order, preceded by the entryUUID when the entry has one.
func WriteEntry(w io.Writer, e partition.Entry) error {
	if err := writeLine(w, "dn", e.DN); err != nil {
		return err
	}
	if e.UUID != uuid.Nil {
		if err := writeLine(w, UUIDAttribute, e.UUID.String()); err != nil {
			return err
		}
	}
	for _, name := range e.Names() {
		for _, value := range e.Attributes[name] {
			if err := writeLine(w, name, value); err != nil {
				return err
			}
		}
	}

	// Empty line separates entries
	_, err := fmt.Fprintln(w)
	return err
}

// WriteLDIF writes entries in LDIF format.
func WriteLDIF(w io.Writer, entries []partition.Entry) error {
	for _, e := range entries {
		if err := WriteEntry(w, e); err != nil {
			return err
		}
	}
	return nil
}

func writeLine(w io.Writer, attr, value string) error {
	var err error
	if needsBase64Encoding([]byte(value)) {
		_, err = fmt.Fprintf(w, "%s:: %s\n", attr, base64.StdEncoding.EncodeToString([]byte(value)))
	} else {
		_, err = fmt.Fprintf(w, "%s: %s\n", attr, value)
	}
	return err
}

// needsBase64Encoding checks if a value needs base64 encoding.
// According to RFC 2849, values need base64 encoding if they:
// - Contain non-printable characters (< 0x20 or > 0x7E, except for space)
// - Start with a space, colon, or less-than sign
// - End with a space
// - Contain NUL characters
// - Contain line breaks
func needsBase64Encoding(value []byte) bool {
	if len(value) == 0 {
		return false
	}

	first := value[0]
	if first == ' ' || first == ':' || first == '<' {
		return true
	}
	if value[len(value)-1] == ' ' {
		return true
	}

	for _, b := range value {
		if b < 0x20 || b > 0x7E {
			return true
		}
	}

	return false
}

// ParseLDIF parses LDIF content into entries. Entry ids are left zero; an
// entryUUID attribute sets the entry's UUID.
func ParseLDIF(r io.Reader) ([]partition.Entry, error) {
	if r == nil {
		return nil, ErrEmptyReader
	}

	var entries []partition.Entry
	err := scanLDIF(r, func(e partition.Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// scanLDIF calls fn for each entry of r in order.
func scanLDIF(r io.Reader, fn func(partition.Entry) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []string
	flush := func() error {
		if len(lines) == 0 {
			return nil
		}
		e, err := parseRecord(lines)
		lines = lines[:0]
		if err != nil {
			return err
		}
		return fn(e)
	}

	for scanner.Scan() {
		line := scanner.Text()

		// Handle line continuation (lines starting with single space)
		if len(line) > 0 && line[0] == ' ' {
			if len(lines) == 0 {
				return fmt.Errorf("%w: continuation without a line", ErrInvalidLDIF)
			}
			lines[len(lines)-1] += line[1:]
			continue
		}

		if len(line) > 0 && line[0] == '#' {
			continue
		}

		// Empty line marks end of entry
		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}

		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLDIF, err)
	}

	// Last entry may lack the trailing empty line
	return flush()
}

// parseRecord builds an entry from the logical lines of one LDIF record.
func parseRecord(lines []string) (partition.Entry, error) {
	attr, value, err := parseLine(lines[0])
	if err != nil {
		return partition.Entry{}, err
	}
	if !strings.EqualFold(attr, "dn") || strings.TrimSpace(value) == "" {
		return partition.Entry{}, ErrMissingDN
	}

	e := partition.Entry{
		DN:         strings.TrimSpace(value),
		Attributes: make(map[string][]string),
	}
	for _, line := range lines[1:] {
		attr, value, err := parseLine(line)
		if err != nil {
			return partition.Entry{}, err
		}
		if strings.EqualFold(attr, UUIDAttribute) {
			u, err := uuid.Parse(strings.TrimSpace(value))
			if err != nil {
				return partition.Entry{}, fmt.Errorf("%w: %s: %v", ErrInvalidLDIF, e.DN, err)
			}
			e.UUID = u
			continue
		}
		name := strings.ToLower(attr)
		e.Attributes[name] = append(e.Attributes[name], value)
	}
	return e, nil
}

// parseLine splits "attr: value" or "attr:: base64".
func parseLine(line string) (string, string, error) {
	colonIdx := strings.Index(line, ":")
	if colonIdx <= 0 {
		return "", "", fmt.Errorf("%w: missing colon in line: %s", ErrInvalidLDIF, line)
	}

	attr := line[:colonIdx]
	rest := line[colonIdx+1:]

	if len(rest) > 0 && rest[0] == ':' {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(rest[1:]))
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidBase64, err)
		}
		return attr, string(decoded), nil
	}
	return attr, strings.TrimLeft(rest, " "), nil
}
