package scriptmeta

import "testing"

func TestParseBasic(t *testing.T) {
	content := `# /// script
# requires-ruby = "3.4"
# ///

puts "Hello"
`
	meta := Parse(content)
	if meta == nil {
		t.Fatal("expected metadata")
	}
	req := meta.RequiresRuby
	if req == nil {
		t.Fatal("expected a ruby request")
	}
	if *req.Major != 3 || *req.Minor != 4 || req.Patch != nil {
		t.Errorf("request = %+v", req)
	}
}

func TestParseWithShebang(t *testing.T) {
	content := `#!/usr/bin/env rv run
# /// script
# requires-ruby = "3.4.1"
# ///

puts RUBY_VERSION
`
	meta := Parse(content)
	if meta == nil || meta.RequiresRuby == nil {
		t.Fatal("expected metadata with ruby request")
	}
	if *meta.RequiresRuby.Patch != 1 {
		t.Errorf("request = %+v", meta.RequiresRuby)
	}
}

func TestParseNoMetadata(t *testing.T) {
	if Parse("puts \"Hello, World!\"\n") != nil {
		t.Error("expected nil without a block")
	}
}

func TestParseEmptyBlock(t *testing.T) {
	content := "# /// script\n# ///\n\nputs 'x'\n"
	meta := Parse(content)
	if meta == nil {
		t.Fatal("an empty block still parses")
	}
	if meta.RequiresRuby != nil {
		t.Error("no ruby request expected")
	}
}

func TestParseEngineVersion(t *testing.T) {
	content := "# /// script\n# requires-ruby = \"jruby-9.4\"\n# ///\n"
	meta := Parse(content)
	if meta == nil || meta.RequiresRuby == nil {
		t.Fatal("expected metadata")
	}
	if meta.RequiresRuby.Engine != "jruby" || *meta.RequiresRuby.Major != 9 {
		t.Errorf("request = %+v", meta.RequiresRuby)
	}
}

func TestUnclosedBlockDiscarded(t *testing.T) {
	content := "# /// script\n# requires-ruby = \"3.4\"\nputs 'no closing marker'\n"
	if Parse(content) != nil {
		t.Error("an unclosed block should be discarded")
	}
}

func TestUnknownKeysIgnored(t *testing.T) {
	content := `# /// script
# requires-ruby = "3.4"
# dependencies = "rake"
# ///
`
	meta := Parse(content)
	if meta == nil || meta.RequiresRuby == nil {
		t.Fatal("known keys should still parse")
	}
}

func TestStopsAtEndMarker(t *testing.T) {
	content := `# /// script
# requires-ruby = "3.4"
# ///
# requires-ruby = "3.3"
`
	meta := Parse(content)
	if *meta.RequiresRuby.Minor != 4 {
		t.Errorf("assignments after the end marker must be ignored: %+v", meta.RequiresRuby)
	}
}

func TestExtraWhitespace(t *testing.T) {
	content := "# /// script\n#   requires-ruby   =   \"3.3\"\n# ///\n"
	meta := Parse(content)
	if meta == nil || meta.RequiresRuby == nil || *meta.RequiresRuby.Minor != 3 {
		t.Fatalf("whitespace around the assignment should be tolerated: %+v", meta)
	}
}
