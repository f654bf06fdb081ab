package extract

import "testing"

func TestExtract(t *testing.T) {
	e := New([]string{"h1", "title", "B"})
	body := `<html><head><title>Gopher Guide</title><style>p{color:red}</style></head>
<body><h1>Intro <i>here</i></h1><p>plain <b>bold</b> text</p>
<script>var x = 1;</script><!-- hidden --></body></html>`

	weighted, rest, err := e.Extract(body)
	if err != nil {
		t.Fatal(err)
	}
	if want := "Gopher Guide Intro here bold"; weighted != want {
		t.Errorf("weighted = %q, want %q", weighted, want)
	}
	if want := "plain text"; rest != want {
		t.Errorf("rest = %q, want %q", rest, want)
	}
}

func TestExtractPlainText(t *testing.T) {
	weighted, rest, err := New(nil).Extract("just some words")
	if err != nil {
		t.Fatal(err)
	}
	if weighted != "" || rest != "just some words" {
		t.Errorf("got %q / %q", weighted, rest)
	}
}
