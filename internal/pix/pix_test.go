package pix

import (
	"strings"
	"testing"
)

var testMerchant = Merchant{Name: "Vitor", City: "Sao Paulo", Key: "16997454758"}

func TestEncodeIsDeterministic(t *testing.T) {
	first := Encode(10.00, "Template 1", testMerchant)
	second := Encode(10.00, "Template 1", testMerchant)
	if first.Code != second.Code || first.Checksum != second.Checksum {
		t.Fatalf("identical inputs produced different payloads:\n%s\n%s", first.Code, second.Code)
	}
}

func TestEncodeIsSensitiveToEveryInput(t *testing.T) {
	base := Encode(10.00, "Template 1", testMerchant)

	variants := map[string]Payload{
		"amount":      Encode(10.01, "Template 1", testMerchant),
		"description": Encode(10.00, "Template 2", testMerchant),
		"key":         Encode(10.00, "Template 1", Merchant{Name: "Vitor", City: "Sao Paulo", Key: "16997454759"}),
		"name":        Encode(10.00, "Template 1", Merchant{Name: "Vito", City: "Sao Paulo", Key: "16997454758"}),
		"city":        Encode(10.00, "Template 1", Merchant{Name: "Vitor", City: "Santos", Key: "16997454758"}),
	}
	for field, got := range variants {
		if got.Code == base.Code {
			t.Errorf("changing %s did not change the payload", field)
		}
	}
}

// walkTLV consumes the payload field by field, verifying that every declared
// length matches the actual value length and returning the parsed fields.
func walkTLV(t *testing.T, data string) map[string]string {
	t.Helper()
	fields := map[string]string{}
	pos := 0
	for pos < len(data) {
		if pos+4 > len(data) {
			t.Fatalf("dangling bytes at offset %d: %q", pos, data[pos:])
		}
		id := data[pos : pos+2]
		length := int(data[pos+2]-'0')*10 + int(data[pos+3]-'0')
		if data[pos+2] < '0' || data[pos+2] > '9' || data[pos+3] < '0' || data[pos+3] > '9' {
			t.Fatalf("non-numeric length for tag %s", id)
		}
		if pos+4+length > len(data) {
			t.Fatalf("tag %s declares length %d past end of payload", id, length)
		}
		fields[id] = data[pos+4 : pos+4+length]
		pos += 4 + length
	}
	return fields
}

func TestEncodeProducesConsistentTLV(t *testing.T) {
	p := Encode(150.00, "Template 2", testMerchant)
	fields := walkTLV(t, p.Code)

	if fields["00"] != "01" {
		t.Fatalf("payload format: expected 01, got %q", fields["00"])
	}
	if fields["53"] != "986" {
		t.Fatalf("currency: expected 986, got %q", fields["53"])
	}
	if fields["54"] != "150.00" {
		t.Fatalf("amount: expected 150.00, got %q", fields["54"])
	}
	if fields["58"] != "BR" {
		t.Fatalf("country: expected BR, got %q", fields["58"])
	}
	if fields["63"] != p.Checksum {
		t.Fatalf("trailing CRC field %q does not match checksum %q", fields["63"], p.Checksum)
	}

	account := walkTLV(t, fields["26"])
	if account["00"] != "br.gov.bcb.pix" {
		t.Fatalf("merchant GUI: got %q", account["00"])
	}
	if account["01"] != testMerchant.Key {
		t.Fatalf("merchant key: got %q", account["01"])
	}

	additional := walkTLV(t, fields["62"])
	if additional["05"] != "Template2" {
		t.Fatalf("reference: expected Template2, got %q", additional["05"])
	}
}

// crcTable recomputes the checksum with a table-driven CRC16/CCITT-FALSE,
// independent of the encoder's bitwise loop.
func crcTable(data string) uint16 {
	var table [256]uint16
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}

	crc := uint16(0xFFFF)
	for i := 0; i < len(data); i++ {
		crc = crc<<8 ^ table[byte(crc>>8)^data[i]]
	}
	return crc
}

func TestChecksumMatchesIndependentCRC(t *testing.T) {
	p := Encode(2050.00, "Template 40", testMerchant)
	if !strings.HasSuffix(p.Code, p.Checksum) {
		t.Fatalf("payload must end with its checksum")
	}

	covered := p.Code[:len(p.Code)-4]
	want := crcTable(covered)
	got := p.Checksum
	if want != parseHex16(t, got) {
		t.Fatalf("checksum mismatch: recomputed %04X, encoded %s", want, got)
	}
}

func parseHex16(t *testing.T, s string) uint16 {
	t.Helper()
	if len(s) != 4 {
		t.Fatalf("checksum must be 4 hex digits, got %q", s)
	}
	var v uint16
	for i := 0; i < len(s); i++ {
		c := s[i]
		var d byte
		switch {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		default:
			t.Fatalf("checksum must be uppercase hex, got %q", s)
		}
		v = v<<4 | uint16(d)
	}
	return v
}

func TestQRCodeURLEscapesPayload(t *testing.T) {
	p := Encode(10.00, "Template 1", testMerchant)
	url := QRCodeURL(p)
	if !strings.HasPrefix(url, "https://api.qrserver.com/v1/create-qr-code/") {
		t.Fatalf("unexpected url %s", url)
	}
	if !strings.Contains(url, "data=000201") {
		t.Fatalf("expected escaped payload in url, got %s", url)
	}
}

func TestReferenceFallsBackWhenEmpty(t *testing.T) {
	p := Encode(1.00, "!!!", testMerchant)
	fields := walkTLV(t, p.Code)
	additional := walkTLV(t, fields["62"])
	if additional["05"] != "***" {
		t.Fatalf("expected *** reference for non-alphanumeric description, got %q", additional["05"])
	}
}
