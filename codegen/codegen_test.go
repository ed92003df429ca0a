package codegen

import (
	"strings"
	"sync"
	"testing"
)

func TestNewAlphanum(t *testing.T) {
	gen := NewAlphanum()
	if gen == nil {
		t.Fatal("NewAlphanum() returned nil")
	}
}

func TestAlphanumGenerator_Generate(t *testing.T) {
	t.Run("generates code of correct length", func(t *testing.T) {
		gen := NewAlphanum()

		lengths := []int{1, 5, 6, 8, 10, 16, 32}
		for _, length := range lengths {
			code, err := gen.Generate(length)
			if err != nil {
				t.Fatalf("Generate(%d) unexpected error: %v", length, err)
			}

			if len(code) != length {
				t.Errorf("Generate(%d) returned length %d, want %d", length, len(code), length)
			}
		}
	})

	t.Run("generates unique codes", func(t *testing.T) {
		gen := NewAlphanum()
		seen := make(map[string]bool)

		// Generate 1000 codes and ensure they're all unique
		for i := 0; i < 1000; i++ {
			code, err := gen.Generate(10)
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}

			if seen[code] {
				t.Errorf("Generate() produced duplicate code: %q", code)
			}
			seen[code] = true
		}

		if len(seen) != 1000 {
			t.Errorf("expected 1000 unique codes, got %d", len(seen))
		}
	})

	t.Run("generates only alphanumeric characters", func(t *testing.T) {
		gen := NewAlphanum()

		for _, length := range []int{10, 50, 100} {
			code, err := gen.Generate(length)
			if err != nil {
				t.Fatalf("Generate(%d) unexpected error: %v", length, err)
			}

			for i, char := range code {
				if !strings.ContainsRune(alphanumChars, char) {
					t.Errorf("Generate(%d) produced invalid character %c at position %d", length, char, i)
				}
			}
		}
	})

	t.Run("returns error for zero length", func(t *testing.T) {
		gen := NewAlphanum()

		_, err := gen.Generate(0)
		if err == nil {
			t.Error("Generate(0) expected error, got nil")
		}

		expectedMsg := "length must be positive"
		if err.Error() != expectedMsg {
			t.Errorf("error message = %q, want %q", err.Error(), expectedMsg)
		}
	})

	t.Run("returns error for negative length", func(t *testing.T) {
		gen := NewAlphanum()

		_, err := gen.Generate(-1)
		if err == nil {
			t.Error("Generate(-1) expected error, got nil")
		}
	})

	t.Run("concurrent generation is safe", func(t *testing.T) {
		gen := NewAlphanum()
		const goroutines = 50
		const iterations = 100

		var wg sync.WaitGroup
		results := make(chan string, goroutines*iterations)
		errChan := make(chan error, goroutines*iterations)

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < iterations; j++ {
					code, err := gen.Generate(8)
					if err != nil {
						errChan <- err
						return
					}
					results <- code
				}
			}()
		}

		wg.Wait()
		close(results)
		close(errChan)

		// Check for errors
		for err := range errChan {
			t.Errorf("concurrent Generate() error: %v", err)
		}

		// Check for uniqueness
		seen := make(map[string]bool)
		count := 0
		for code := range results {
			count++
			if seen[code] {
				t.Errorf("concurrent generation produced duplicate: %q", code)
			}
			seen[code] = true
		}

		expectedCount := goroutines * iterations
		if count != expectedCount {
			t.Errorf("expected %d codes, got %d", expectedCount, count)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		alias   string
		wantErr bool
	}{
		{name: "valid short alias", alias: "mylink", wantErr: false},
		{name: "valid mixed case", alias: "MyLink42", wantErr: false},
		{name: "valid single character", alias: "a", wantErr: false},
		{name: "valid at max length", alias: strings.Repeat("a", MaxAliasLength), wantErr: false},
		{name: "empty alias", alias: "", wantErr: true},
		{name: "too long", alias: strings.Repeat("a", MaxAliasLength+1), wantErr: true},
		{name: "contains dash", alias: "my-link", wantErr: true},
		{name: "contains underscore", alias: "my_link", wantErr: true},
		{name: "contains slash", alias: "my/link", wantErr: true},
		{name: "contains space", alias: "my link", wantErr: true},
		{name: "contains unicode", alias: "mylinké", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.alias)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.alias, err, tt.wantErr)
			}
		})
	}
}

func TestAlphanumChars(t *testing.T) {
	if len(alphanumChars) != 62 {
		t.Errorf("alphanumChars length = %d, want 62", len(alphanumChars))
	}

	seen := make(map[rune]bool)
	for _, char := range alphanumChars {
		if seen[char] {
			t.Errorf("alphanumChars contains duplicate character: %c", char)
		}
		seen[char] = true
	}
}

func BenchmarkAlphanumGenerator_Generate(b *testing.B) {
	gen := NewAlphanum()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, err := gen.Generate(6)
		if err != nil {
			b.Fatalf("Generate() error: %v", err)
		}
	}
}
