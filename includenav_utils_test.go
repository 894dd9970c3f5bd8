// includenav/includenav_utils_test.go
package includenav

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestLSPPositionConversion tests UTF-16 to byte conversions.
func TestLSPPositionConversion(t *testing.T) {
	t.Run("TestUtf16OffsetToBytes", func(t *testing.T) {
		tests := []struct {
			name           string
			lineContent    string
			utf16Offset    int
			wantByteOffset int
			wantErr        bool
			wantErrType    error
		}{
			{"ASCII start", "hello", 0, 0, false, nil}, {"ASCII middle", "hello", 2, 2, false, nil}, {"ASCII end", "hello", 5, 5, false, nil}, {"ASCII past end", "hello", 6, 5, true, ErrPositionOutOfRange}, {"ASCII negative", "hello", -1, 0, true, ErrInvalidPositionInput},
			{"2byte UTF-8 before", "héllo", 1, 1, false, nil}, {"2byte UTF-8 after", "héllo", 2, 3, false, nil}, {"2byte UTF-8 end", "héllo", 5, 6, false, nil}, {"2byte UTF-8 past end", "héllo", 6, 6, true, ErrPositionOutOfRange},
			{"3byte UTF-8 after", "€ euro", 1, 3, false, nil}, {"3byte UTF-8 end", "€ euro", 6, 8, false, nil},
			{"4byte UTF-8 within surrogate", "😂笑", 1, 0, false, nil}, {"4byte UTF-8 after surrogate", "😂笑", 2, 4, false, nil}, {"4byte UTF-8 after second char", "😂笑", 3, 7, false, nil}, {"4byte UTF-8 past end", "😂笑", 4, 7, true, ErrPositionOutOfRange},
			{"Empty line start", "", 0, 0, false, nil}, {"Empty line past end", "", 1, 0, true, ErrPositionOutOfRange},
			{"Invalid UTF-8", "\xffab", 2, 0, true, ErrInvalidUTF8},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				gotByteOffset, err := Utf16OffsetToBytes([]byte(tt.lineContent), tt.utf16Offset)
				if (err != nil) != tt.wantErr {
					t.Errorf("Utf16OffsetToBytes() error = %v, wantErr %v", err, tt.wantErr)
					return
				}
				if tt.wantErr && tt.wantErrType != nil && !errors.Is(err, tt.wantErrType) {
					t.Errorf("Utf16OffsetToBytes() error = %v, want error wrapping %v", err, tt.wantErrType)
				}
				if gotByteOffset != tt.wantByteOffset {
					t.Errorf("Utf16OffsetToBytes() gotByteOffset = %d, want %d", gotByteOffset, tt.wantByteOffset)
				}
			})
		}
	})

	t.Run("TestLspPositionToByteColumn", func(t *testing.T) {
		doc := NewTextDocument("/a.txt", "plaintext", "line one\ntwo é 😂\nthree €\n")
		tests := []struct {
			name              string
			pos               LSPPosition
			wantLine, wantCol int
			wantErrType       error
		}{
			{"Start of file", LSPPosition{Line: 0, Character: 0}, 0, 0, nil},
			{"Middle line 1", LSPPosition{Line: 0, Character: 5}, 0, 5, nil},
			{"After é", LSPPosition{Line: 1, Character: 5}, 1, 6, nil},
			{"Within 😂", LSPPosition{Line: 1, Character: 7}, 1, 7, nil},
			{"After 😂", LSPPosition{Line: 1, Character: 8}, 1, 11, nil},
			{"After €", LSPPosition{Line: 2, Character: 7}, 2, 9, nil},
			{"Char past end clamps", LSPPosition{Line: 0, Character: 10}, 0, 8, nil},
			{"Char past end of empty line clamps", LSPPosition{Line: 3, Character: 1}, 3, 0, nil},
			{"Line past end", LSPPosition{Line: 4, Character: 0}, 0, 0, ErrPositionOutOfRange},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				line, col, err := LspPositionToByteColumn(doc, tt.pos)
				if tt.wantErrType != nil {
					assert.ErrorIs(t, err, tt.wantErrType)
					return
				}
				assert.NoError(t, err)
				assert.Equal(t, tt.wantLine, line)
				assert.Equal(t, tt.wantCol, col)
			})
		}

		_, _, err := LspPositionToByteColumn(NewTextDocument("/b.txt", "plaintext", "\xff\xfe"), LSPPosition{Line: 0, Character: 1})
		assert.ErrorIs(t, err, ErrPositionConversion)
	})

	t.Run("TestByteColumnToUTF16", func(t *testing.T) {
		assert.EqualValues(t, 8, byteColumnToUTF16("two é 😂", 11))
		assert.EqualValues(t, 5, byteColumnToUTF16("two é 😂", 6))
		assert.EqualValues(t, 3, byteColumnToUTF16("abc", 99))
	})
}

func TestRangeToLSP(t *testing.T) {
	doc := NewTextDocument("/a.js", "javascript", "import é from './é.js';")
	got := rangeToLSP(doc, Range{Start: Position{Line: 0, Character: 16}, End: Position{Line: 0, Character: 23}})
	assert.Equal(t, LSPRange{Start: LSPPosition{Line: 0, Character: 15}, End: LSPPosition{Line: 0, Character: 21}}, got)
}

func TestURIConversion(t *testing.T) {
	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{"file:///home/u/a.php", "/home/u/a.php", false},
		{"file:///home/u/my%20file.js", "/home/u/my file.js", false},
		{"file:///home/u/../v/b.css", "/home/v/b.css", false},
		{"", "", true},
		{"http://example.com/a.js", "", true},
		{"file://relative", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ValidateAndGetFilePath(tt.uri)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURI)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	uri, err := PathToURI("/home/u/my file.js")
	assert.NoError(t, err)
	assert.Equal(t, "file:///home/u/my%20file.js", uri)

	loc, err := targetLocation("/proj/src/a.ts")
	assert.NoError(t, err)
	assert.Equal(t, Location{URI: "file:///proj/src/a.ts"}, loc)
}
