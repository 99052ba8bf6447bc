package zstring

// accentTable maps the ZSCII extended character codes 155-223 to Unicode
// runes, per the Z-machine standard's default Unicode translation table.
// This is display-only plumbing for a terminal frontend; it is part of
// ZSCII's own definition, not a V6 Unicode feature.
var accentTable = map[uint8]rune{
	155: 'ä', 156: 'ö', 157: 'ü', 158: 'Ä', 159: 'Ö', 160: 'Ü', 161: 'ß',
	162: '»', 163: '«', 164: 'ë', 165: 'ï', 166: 'ÿ', 167: 'Ë', 168: 'Ï',
	169: 'á', 170: 'é', 171: 'í', 172: 'ó', 173: 'ú', 174: 'ý', 175: 'Á',
	176: 'É', 177: 'Í', 178: 'Ó', 179: 'Ú', 180: 'Ý', 181: 'à', 182: 'è',
	183: 'ì', 184: 'ò', 185: 'ù', 186: 'À', 187: 'È', 188: 'Ì', 189: 'Ò',
	190: 'Ù', 191: 'â', 192: 'ê', 193: 'î', 194: 'ô', 195: 'û', 196: 'Â',
	197: 'Ê', 198: 'Î', 199: 'Ô', 200: 'Û', 201: 'å', 202: 'Å', 203: 'ø',
	204: 'Ø', 205: 'ã', 206: 'ñ', 207: 'õ', 208: 'Ã', 209: 'Ñ', 210: 'Õ',
	211: 'æ', 212: 'Æ', 213: 'ç', 214: 'Ç', 215: 'þ', 216: 'ð', 217: 'Þ',
	218: 'Ð', 219: '£', 220: 'œ', 221: 'Œ', 222: '¡', 223: '¿',
}

// ToUnicode converts a single ZSCII byte to the rune a terminal should
// display for it. ASCII-range bytes pass through unchanged; bytes outside
// the defined accent table fall back to the space character.
func ToUnicode(zscii uint8) rune {
	if zscii >= 32 && zscii <= 126 {
		return rune(zscii)
	}
	if r, ok := accentTable[zscii]; ok {
		return r
	}
	return ' '
}

// FromUnicode converts a rune back to its ZSCII byte in the accent table,
// reporting false when the rune has no entry there.
func FromUnicode(r rune) (uint8, bool) {
	if r >= 32 && r <= 126 {
		return uint8(r), true
	}
	for z, ru := range accentTable {
		if ru == r {
			return z, true
		}
	}
	return 0, false
}
