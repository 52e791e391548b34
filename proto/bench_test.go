package proto

import (
	"strings"
	"testing"
)

func BenchmarkNormalizeKey(b *testing.B) {
	tests := []struct {
		name string
		key  string
	}{
		{"Short", "user:42"},
		{"MaxLength", strings.Repeat("a", 255)},
		{"Hashed", strings.Repeat("a", 1024)},
	}

	for _, tt := range tests {
		b.Run(tt.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				NormalizeKey(tt.key)
			}
		})
	}
}

func BenchmarkAppendSet(b *testing.B) {
	value := []byte(strings.Repeat("v", 512))
	tags := []string{"users", "sessions", "eu-west"}
	buf := make([]byte, 0, 1024)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf = buf[:0]
		_, err := AppendSet(buf, "user:42", value, tags, 300, 0)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAppendGet(b *testing.B) {
	buf := make([]byte, 0, 64)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf = AppendGet(buf[:0], "user:42", 0)
	}
	_ = buf
}

func BenchmarkParseList(b *testing.B) {
	var payload []byte
	for i := 0; i < 100; i++ {
		payload = append(payload, 7)
		payload = append(payload, "key-000"...)
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseList(payload); err != nil {
			b.Fatal(err)
		}
	}
}
