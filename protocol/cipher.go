package protocol

// Shift is the reversible obfuscation applied to chat text. It rotates
// printable ASCII and leaves every other byte untouched. It is not a
// security mechanism.
const Shift = 3

const (
	printableFirst = ' '
	printableLast  = '~'
	printableSpan  = printableLast - printableFirst + 1
)

func Encipher(s string) string {
	return rotate(s, Shift)
}

func Decipher(s string) string {
	return rotate(s, printableSpan-Shift)
}

func rotate(s string, n int) string {
	b := []byte(s)
	for i, c := range b {
		if c < printableFirst || c > printableLast {
			continue
		}
		b[i] = byte(printableFirst + (int(c-printableFirst)+n)%printableSpan)
	}
	return string(b)
}
