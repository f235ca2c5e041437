package lesson

import (
	"errors"
	"reflect"
	"testing"
)

func TestTemplateKeysInOrder(t *testing.T) {
	tmpl, err := ParseTemplate("Hi {name}, you are {age}. Bye {name}!")
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	want := []string{"name", "age"}
	if got := tmpl.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys = %v, want %v", got, want)
	}
}

func TestTemplateRender(t *testing.T) {
	tmpl := MustParseTemplate("My name is {name}. I am {age:d} years old.")
	out, err := tmpl.Render(map[string]string{"name": "Ana", "age": "20"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "My name is Ana. I am 20 years old." {
		t.Fatalf("got %q", out)
	}
}

func TestTemplateEscapedBraces(t *testing.T) {
	tmpl := MustParseTemplate("Use {{braces}} for {thing}")
	if len(tmpl.Keys()) != 1 {
		t.Fatalf("expected one key, got %v", tmpl.Keys())
	}
	out, err := tmpl.Render(map[string]string{"thing": "fun"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "Use {braces} for fun" {
		t.Fatalf("got %q", out)
	}
}

func TestTemplateMissingKeyStaysVisible(t *testing.T) {
	tmpl := MustParseTemplate("From {city}, {country}")
	out, err := tmpl.Render(map[string]string{"city": "Lima"})
	if !errors.Is(err, ErrTemplateMissingKey) {
		t.Fatalf("expected ErrTemplateMissingKey, got %v", err)
	}
	var mk *MissingKeyError
	if !errors.As(err, &mk) || len(mk.Keys) != 1 || mk.Keys[0] != "country" {
		t.Fatalf("unexpected missing keys: %v", err)
	}
	if out != "From Lima, {country}" {
		t.Fatalf("got %q", out)
	}
}

func TestTemplateMalformed(t *testing.T) {
	for _, s := range []string{"open {name", "close }", "empty {}"} {
		if _, err := ParseTemplate(s); err == nil {
			t.Errorf("%q: expected error", s)
		}
	}
}
