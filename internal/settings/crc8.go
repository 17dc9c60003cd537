package settings

// Checksum computes the CRC-8 guarding the persisted record: polynomial 0x8C
// (the reflected form of x^8+x^5+x^4+1), processed LSB-first with eight
// shifts per input byte, initial value 0. This is the Dallas/Maxim 1-Wire
// CRC and must not be substituted with another construction; the checksum
// byte on media is compared against exactly this computation.
func Checksum(data []byte) byte {
	var crc byte
	for _, b := range data {
		for i := 0; i < 8; i++ {
			mix := (crc ^ b) & 0x01
			crc >>= 1
			if mix != 0 {
				crc ^= 0x8C
			}
			b >>= 1
		}
	}
	return crc
}
