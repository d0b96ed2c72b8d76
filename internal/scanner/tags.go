package scanner

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Tags are the fields the scanner cares about. Reading is best-effort:
// whatever cannot be parsed stays empty and the filename fills the gaps.
type Tags struct {
	Artist string
	Title  string
	Genre  string
	BPM    float64
	Key    string
}

// readTags extracts tags from a file, trying ID3v2 first, then ID3v1, then
// falling back to an "Artist - Title" filename convention.
func readTags(path string) Tags {
	var tags Tags
	if data, err := os.ReadFile(path); err == nil {
		tags = parseID3v2(data)
		if tags.Artist == "" && tags.Title == "" {
			v1 := parseID3v1(data)
			if v1.Artist != "" || v1.Title != "" {
				tags = v1
			}
		}
	}
	if tags.Artist == "" || tags.Title == "" {
		artist, title := splitFilename(path)
		if tags.Artist == "" {
			tags.Artist = artist
		}
		if tags.Title == "" {
			tags.Title = title
		}
	}
	return tags
}

// splitFilename derives (artist, title) from "Artist - Title.ext". Files
// without the separator become untitled tracks named after the file.
func splitFilename(path string) (string, string) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if artist, title, ok := strings.Cut(base, " - "); ok {
		return strings.TrimSpace(artist), strings.TrimSpace(title)
	}
	return "Unknown Artist", strings.TrimSpace(base)
}

func parseID3v2(data []byte) Tags {
	var tags Tags
	if len(data) < 10 || string(data[0:3]) != "ID3" {
		return tags
	}
	major := data[3]
	if major < 2 || major > 4 {
		return tags
	}
	size := syncsafe(data[6:10])
	end := 10 + size
	if end > len(data) {
		end = len(data)
	}

	offset := 10
	for offset < end {
		var frameID string
		var frameSize, headerLen int
		if major == 2 {
			if offset+6 > end {
				break
			}
			frameID = string(data[offset : offset+3])
			frameSize = int(data[offset+3])<<16 | int(data[offset+4])<<8 | int(data[offset+5])
			headerLen = 6
		} else {
			if offset+10 > end {
				break
			}
			frameID = string(data[offset : offset+4])
			if major == 4 {
				frameSize = syncsafe(data[offset+4 : offset+8])
			} else {
				frameSize = int(binary.BigEndian.Uint32(data[offset+4 : offset+8]))
			}
			headerLen = 10
		}
		if frameSize <= 0 || offset+headerLen+frameSize > end {
			break
		}
		body := data[offset+headerLen : offset+headerLen+frameSize]
		switch frameID {
		case "TPE1", "TP1":
			tags.Artist = decodeTextFrame(body)
		case "TIT2", "TT2":
			tags.Title = decodeTextFrame(body)
		case "TCON", "TCO":
			tags.Genre = decodeTextFrame(body)
		case "TBPM", "TBP":
			if bpm, err := strconv.ParseFloat(decodeTextFrame(body), 64); err == nil {
				tags.BPM = bpm
			}
		case "TKEY", "TKE":
			tags.Key = decodeTextFrame(body)
		}
		offset += headerLen + frameSize
	}
	return tags
}

func syncsafe(b []byte) int {
	return int(b[0]&0x7f)<<21 | int(b[1]&0x7f)<<14 | int(b[2]&0x7f)<<7 | int(b[3]&0x7f)
}

// decodeTextFrame handles the four ID3v2 text encodings: Latin-1, UTF-16
// with BOM, UTF-16BE, and UTF-8.
func decodeTextFrame(body []byte) string {
	if len(body) < 2 {
		return ""
	}
	encoding := body[0]
	text := body[1:]
	var decoded string
	switch encoding {
	case 0: // Latin-1
		runes := make([]rune, len(text))
		for i, b := range text {
			runes[i] = rune(b)
		}
		decoded = string(runes)
	case 1: // UTF-16 with BOM
		decoded = decodeUTF16(text)
	case 2: // UTF-16BE
		decoded = decodeUTF16BE(text)
	case 3: // UTF-8
		decoded = string(text)
	default:
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(decoded), "\x00")
}

func decodeUTF16(text []byte) string {
	if len(text) < 2 {
		return ""
	}
	if text[0] == 0xFF && text[1] == 0xFE {
		return decodeUTF16LE(text[2:])
	}
	if text[0] == 0xFE && text[1] == 0xFF {
		return decodeUTF16BE(text[2:])
	}
	return decodeUTF16LE(text)
}

func decodeUTF16LE(text []byte) string {
	units := make([]uint16, 0, len(text)/2)
	for i := 0; i+1 < len(text); i += 2 {
		units = append(units, binary.LittleEndian.Uint16(text[i:i+2]))
	}
	return string(utf16.Decode(units))
}

func decodeUTF16BE(text []byte) string {
	units := make([]uint16, 0, len(text)/2)
	for i := 0; i+1 < len(text); i += 2 {
		units = append(units, binary.BigEndian.Uint16(text[i:i+2]))
	}
	return string(utf16.Decode(units))
}

// id3v1Genres is the classic genre table; only the slots the priority rules
// inspect matter, but the full list keeps indexes honest.
var id3v1Genres = []string{
	"Blues", "Classic Rock", "Country", "Dance", "Disco", "Funk", "Grunge",
	"Hip-Hop", "Jazz", "Metal", "New Age", "Oldies", "Other", "Pop", "R&B",
	"Rap", "Reggae", "Rock", "Techno", "Industrial", "Alternative", "Ska",
	"Death Metal", "Pranks", "Soundtrack", "Euro-Techno", "Ambient",
	"Trip-Hop", "Vocal", "Jazz+Funk", "Fusion", "Trance", "Classical",
	"Instrumental", "Acid", "House", "Game", "Sound Clip", "Gospel", "Noise",
	"Alternative Rock", "Bass", "Soul", "Punk", "Space", "Meditative",
	"Instrumental Pop", "Instrumental Rock", "Ethnic", "Gothic", "Darkwave",
	"Techno-Industrial", "Electronic", "Pop-Folk", "Eurodance", "Dream",
	"Southern Rock", "Comedy", "Cult", "Gangsta", "Top 40", "Christian Rap",
	"Pop/Funk", "Jungle", "Native American", "Cabaret", "New Wave",
	"Psychedelic", "Rave", "Showtunes", "Trailer", "Lo-Fi", "Tribal",
	"Acid Punk", "Acid Jazz", "Polka", "Retro", "Musical", "Rock & Roll",
	"Hard Rock",
}

func parseID3v1(data []byte) Tags {
	var tags Tags
	if len(data) < 128 {
		return tags
	}
	trailer := data[len(data)-128:]
	if string(trailer[0:3]) != "TAG" {
		return tags
	}
	tags.Title = trimID3v1(trailer[3:33])
	tags.Artist = trimID3v1(trailer[33:63])
	if genre := int(trailer[127]); genre < len(id3v1Genres) {
		tags.Genre = id3v1Genres[genre]
	}
	return tags
}

func trimID3v1(field []byte) string {
	return strings.TrimSpace(strings.TrimRight(string(field), "\x00"))
}
