package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// sniffLength defines the maximum number of bytes read when detecting binary content.
const sniffLength = 1024

// binaryExtensions lists file extensions that are always treated as binary
// without inspecting content.
var binaryExtensions = map[string]struct{}{
	// Font files
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {}, ".otf": {},
	// Images
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {}, ".ico": {}, ".webp": {},
	// Documents
	".pdf": {}, ".doc": {}, ".docx": {},
	// Archives
	".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {},
	// Executables and shared libraries
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {},
	// Compiled bytecode
	".pyc": {}, ".pyo": {},
}

// HasBinaryExtension reports whether the path carries an extension from the
// binary denylist.
func HasBinaryExtension(path string) bool {
	extension := strings.ToLower(filepath.Ext(path))
	_, denied := binaryExtensions[extension]
	return denied
}

// IsBinary reports whether the provided byte slice appears to contain binary
// data. A byte is considered textual when it is one of BEL, BS, TAB, LF, FF,
// CR, ESC, or falls in the printable range 0x20–0xFE excluding DEL.
func IsBinary(data []byte) bool {
	for _, byteValue := range data {
		if isTextualByte(byteValue) {
			continue
		}
		return true
	}
	return false
}

func isTextualByte(byteValue byte) bool {
	switch byteValue {
	case 7, 8, 9, 10, 12, 13, 27:
		return true
	case 0x7F:
		return false
	}
	return byteValue >= 0x20 && byteValue <= 0xFE
}

// IsFileBinary determines whether the file at path should be treated as
// binary. The extension denylist is consulted first; otherwise up to
// sniffLength bytes of content are inspected. Files that cannot be read are
// conservatively treated as binary.
func IsFileBinary(path string) bool {
	if HasBinaryExtension(path) {
		return true
	}

	fileHandle, openError := os.Open(path)
	if openError != nil {
		return true
	}
	defer fileHandle.Close()

	buffer := make([]byte, sniffLength)
	bytesRead, readError := fileHandle.Read(buffer)
	if readError != nil && readError != io.EOF {
		return true
	}
	return IsBinary(buffer[:bytesRead])
}
