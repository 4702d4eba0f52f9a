package validator

import (
	"strings"
	"testing"
)

var v = New("ar", "ru", "en")

func TestIsValid(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		target    string
		wantValid bool
		wantErr   bool
	}{
		{"no target", "Любой текст", "", true, false},
		{"empty", "", "ru", false, true},
		{"whitespace only", "  \n\t ", "ru", false, true},
		{"short text skipped", "Аминь.", "ru", true, false},
		{"short arabic rejected", "آمين", "ru", false, true},
		{"short arabic for arabic target", "آمين", "ar", true, false},
		{"arabic term quoted", "Поминание (ذكر) очищает сердце.", "ru", true, false},
		{"russian", "Сказал имам Абу Хамид аль-Газали, да помилует его Аллах.", "ru", true, false},
		{"target case insensitive", "Сказал имам Абу Хамид аль-Газали, да помилует его Аллах.", "RU", true, false},
		{"english instead of russian", "The imam said that remembrance purifies the heart.", "ru", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, err := v.IsValid(tt.text, tt.target)
			if valid != tt.wantValid {
				t.Errorf("IsValid() valid = %v, want %v", valid, tt.wantValid)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("IsValid() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsValid_WrongLanguageNamed(t *testing.T) {
	_, err := v.IsValid("The imam said that remembrance purifies the heart.", "ru")
	if err == nil || !strings.Contains(err.Error(), "EN") {
		t.Errorf("expected error naming the detected language, got %v", err)
	}
}

func TestIsValid_UntranslatedSourceRejected(t *testing.T) {
	valid, err := v.IsValid("قال الإمام أبو حامد الغزالي رحمه الله تعالى في كتاب الإحياء", "ru")
	if valid {
		t.Fatal("Arabic echo of the source accepted as Russian")
	}
	if err == nil || !strings.Contains(err.Error(), "Arabic script") {
		t.Errorf("expected error naming the Arabic share, got %v", err)
	}
}
