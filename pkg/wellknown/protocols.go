package wellknown

import (
	"bytes"
	"encoding/csv"
	"io"
	"log"
	"strconv"
	"strings"

	_ "embed"
)

//go:embed protocols.csv
var protocolsData string

// Well-known protocol numbers referenced directly by the analyser.
const (
	ICMP = 1
	TCP  = 6
	UDP  = 17
)

type ProtocolEntry struct {
	Number      int
	Keyword     string
	Description string
}

var (
	byKeyword map[string]ProtocolEntry
	byNumber  map[int]ProtocolEntry
)

func init() {
	byKeyword = make(map[string]ProtocolEntry)
	byNumber = make(map[int]ProtocolEntry)
	reader := csv.NewReader(bytes.NewBufferString(protocolsData))
	reader.TrimLeadingSpace = true
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Fatalf("Failed to read header from embedded protocols.csv: %v", err)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to parse embedded protocols.csv: %v", err)
		}
		if len(record) < 3 {
			continue
		}

		number, err := strconv.Atoi(record[0])
		if err != nil {
			continue // Skip if number is not valid
		}
		entry := ProtocolEntry{
			Number:      number,
			Keyword:     strings.ToLower(strings.TrimSpace(record[1])),
			Description: strings.TrimSpace(record[2]),
		}
		byKeyword[entry.Keyword] = entry
		byNumber[number] = entry
	}
}

// LookupProtocol returns the IANA number for a protocol keyword such as "tcp".
func LookupProtocol(keyword string) (int, bool) {
	entry, ok := byKeyword[strings.ToLower(keyword)]
	return entry.Number, ok
}

// ProtocolName returns the keyword for a protocol number.
func ProtocolName(number int) (string, bool) {
	entry, ok := byNumber[number]
	return entry.Keyword, ok
}
