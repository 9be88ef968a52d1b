// Package pix builds merchant-presented PIX payloads following the EMV QR
// code specification: a flat TLV string whose last field is a CRC16 checksum
// over everything before it.
package pix

import (
	"fmt"
	"net/url"
	"strings"
)

// EMV tag identifiers used by the static merchant payload.
const (
	tagPayloadFormat       = "00"
	tagMerchantAccountInfo = "26"
	tagMerchantCategory    = "52"
	tagCurrency            = "53"
	tagAmount              = "54"
	tagCountry             = "58"
	tagMerchantName        = "59"
	tagMerchantCity        = "60"
	tagAdditionalData      = "62"
	tagCRC                 = "63"

	subTagGUI         = "00"
	subTagPixKey      = "01"
	subTagReference   = "05"
	pixGUI            = "br.gov.bcb.pix"
	payloadFormatEMV  = "01"
	merchantCategory  = "0000"
	currencyBRL       = "986"
	countryBR         = "BR"
	maxMerchantName   = 25
	maxMerchantCity   = 15
	maxReferenceChars = 25
)

// Merchant identifies the payee encoded into every payload.
type Merchant struct {
	Name string
	City string
	Key  string
}

// Payload is a generated PIX code plus its checksum.
type Payload struct {
	Code     string
	Checksum string
}

// Encode builds the deterministic copy-and-paste PIX code for the given
// amount and description. Identical inputs always produce identical output.
func Encode(amount float64, description string, m Merchant) Payload {
	account := field(subTagGUI, pixGUI) + field(subTagPixKey, m.Key)
	additional := field(subTagReference, reference(description))

	var b strings.Builder
	b.WriteString(field(tagPayloadFormat, payloadFormatEMV))
	b.WriteString(field(tagMerchantAccountInfo, account))
	b.WriteString(field(tagMerchantCategory, merchantCategory))
	b.WriteString(field(tagCurrency, currencyBRL))
	b.WriteString(field(tagAmount, fmt.Sprintf("%.2f", amount)))
	b.WriteString(field(tagCountry, countryBR))
	b.WriteString(field(tagMerchantName, clip(normalize(m.Name), maxMerchantName)))
	b.WriteString(field(tagMerchantCity, clip(normalize(m.City), maxMerchantCity)))
	b.WriteString(field(tagAdditionalData, additional))

	// The checksum covers the payload up to and including "6304".
	b.WriteString(tagCRC)
	b.WriteString("04")
	checksum := crc16(b.String())
	b.WriteString(checksum)

	return Payload{Code: b.String(), Checksum: checksum}
}

// QRCodeURL returns a rendering URL for the payload.
func QRCodeURL(p Payload) string {
	return "https://api.qrserver.com/v1/create-qr-code/?size=200x200&data=" + url.QueryEscape(p.Code)
}

// Instructions formats the user-facing payment block around the code.
func Instructions(p Payload, amount float64, description string, m Merchant) string {
	var b strings.Builder
	b.WriteString("💎 *PIX COPIA E COLA:*\n")
	b.WriteString(p.Code)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "💵 *Valor:* R$ %.2f\n", amount)
	fmt.Fprintf(&b, "📝 *Descrição:* %s\n\n", description)
	fmt.Fprintf(&b, "🏢 *Beneficiário:* %s\n", m.Name)
	fmt.Fprintf(&b, "📱 *Chave PIX:* %s\n\n", m.Key)
	fmt.Fprintf(&b, "🖼️ *QR Code:* %s\n\n", QRCodeURL(p))
	b.WriteString("Após o pagamento, envie o comprovante para confirmarmos e iniciarmos seu projeto! 🚀")
	return b.String()
}

// field renders one TLV element: id, two-digit length, value.
func field(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// reference derives the transaction reference carried in tag 62-05:
// alphanumeric characters of the description, clipped to the EMV limit.
func reference(description string) string {
	var b strings.Builder
	for _, r := range normalize(description) {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	ref := clip(b.String(), maxReferenceChars)
	if ref == "" {
		ref = "***"
	}
	return ref
}

// normalize strips the few accented letters that show up in pt-BR merchant
// data; EMV payloads are plain ASCII.
func normalize(s string) string {
	replacer := strings.NewReplacer(
		"á", "a", "à", "a", "ã", "a", "â", "a",
		"é", "e", "ê", "e", "í", "i",
		"ó", "o", "õ", "o", "ô", "o",
		"ú", "u", "ç", "c",
		"Á", "A", "À", "A", "Ã", "A", "Â", "A",
		"É", "E", "Ê", "E", "Í", "I",
		"Ó", "O", "Õ", "O", "Ô", "O",
		"Ú", "U", "Ç", "C",
	)
	return replacer.Replace(s)
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// crc16 implements CRC16/CCITT-FALSE: polynomial 0x1021, initial value
// 0xFFFF, no final xor, rendered as four uppercase hex digits.
func crc16(data string) string {
	crc := uint16(0xFFFF)
	for i := 0; i < len(data); i++ {
		crc ^= uint16(data[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return fmt.Sprintf("%04X", crc)
}
