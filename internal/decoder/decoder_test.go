package decoder

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

const (
	exceptionInput = "Exception (9):\n" +
		"epc1=0x40201234 epc2=0x00000000 epc3=0x00000000 excvaddr=0x00000000 depc=0x00000000\n"
	exceptionBlock = "\nLoadStoreAlignmentCause: Load or store to an unaligned address\n" +
		"  epc1=0x40201234 in setup at main.cpp:12\n"

	stackInput = ">>>stack>>>\n3ffe8170:  4024b26c 00000000 3ffe8190  \n<<<stack<<<\n"
	stackBlock = "\n0x4024b26c in loop at main.cpp:20\n\n"
)

// fakeResolver maps addresses to fixed locations and records every call.
type fakeResolver struct {
	t         *testing.T
	locations map[uint64]string
	failing   map[uint64]error
	calls     []uint64
}

func newFakeResolver(t *testing.T) *fakeResolver {
	return &fakeResolver{
		t: t,
		locations: map[uint64]string{
			0x40201234: "setup at /proj/main.cpp:12",
			0x4024b26c: "loop at main.cpp:20",
		},
		failing: map[uint64]error{},
	}
}

func (r *fakeResolver) Resolve(firmware string, addr uint64) (string, bool, error) {
	r.calls = append(r.calls, addr)
	if addr < DefaultCodeMin || addr >= DefaultCodeMax {
		r.t.Errorf("resolver called with out-of-range address 0x%08x", addr)
	}
	if firmware != "firmware.elf" {
		r.t.Errorf("resolver called with firmware %q", firmware)
	}
	if err, ok := r.failing[addr]; ok {
		return "", false, err
	}
	loc, ok := r.locations[addr]
	return loc, ok, nil
}

func newTestFilter(t *testing.T, r Resolver, diag *bytes.Buffer) *Filter {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ProjectRoot = "/proj"
	if diag == nil {
		diag = &bytes.Buffer{}
	}
	return New(cfg, "firmware.elf", r, diag, zap.NewNop())
}

func TestFilter_Rx(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "exception header",
			input: exceptionInput,
			want:  exceptionInput + exceptionBlock,
		},
		{
			name:  "stack block",
			input: stackInput,
			want:  stackInput + stackBlock,
		},
		{
			name:  "crlf line endings",
			input: "Exception (9):\r\nepc1=0x40201234\r\n",
			want:  "Exception (9):\r\nepc1=0x40201234\r\n" + exceptionBlock,
		},
		{
			name:  "unknown exception cause",
			input: "Exception (42):\nepc1=0x40201234\n",
			want:  "Exception (42):\nepc1=0x40201234\n\n  epc1=0x40201234 in setup at main.cpp:12\n",
		},
		{
			name:  "register line without marker",
			input: "Reset (9):\nepc1=0x40201234\n",
			want:  "Reset (9):\nepc1=0x40201234\n",
		},
		{
			name:  "malformed register line",
			input: "Exception (9):\nepc1=0x4020123\n",
			want:  "Exception (9):\nepc1=0x4020123\n",
		},
		{
			name:  "annotation stays after its line",
			input: exceptionInput + "ets Jan  8 2013,rst cause:2, boot mode:(3,6)\n",
			want:  exceptionInput + exceptionBlock + "ets Jan  8 2013,rst cause:2, boot mode:(3,6)\n",
		},
		{
			name:  "exception then stack in arrival order",
			input: exceptionInput + "\n" + stackInput,
			want:  exceptionInput + exceptionBlock + "\n" + stackInput + stackBlock,
		},
		{
			name:  "stack block without resolvable words",
			input: ">>>stack>>>\n3ffe8170:  00000000 3ffe8190\n<<<stack<<<\n",
			want:  ">>>stack>>>\n3ffe8170:  00000000 3ffe8190\n<<<stack<<<\n",
		},
		{
			name:  "unterminated line is passed through",
			input: "Exception (9):\nepc1=0x40201234",
			want:  "Exception (9):\nepc1=0x40201234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFilter(t, newFakeResolver(t), nil)
			got := f.Rx(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Rx() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilter_Rx_SkipsOutOfRangeAddresses(t *testing.T) {
	r := newFakeResolver(t)
	f := newTestFilter(t, r, nil)

	f.Rx(exceptionInput)
	f.Rx(">>>stack>>>\n3ffe8170:  3ffe8190 40300000 3fffffff 4024b26c\n<<<stack<<<\n")

	want := []uint64{0x40201234, 0x4024b26c}
	if diff := cmp.Diff(want, r.calls); diff != "" {
		t.Errorf("resolver calls mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_Rx_InlinedFrames(t *testing.T) {
	r := newFakeResolver(t)
	r.locations[0x40201234] = "inner at /proj/lib/a.h:3\n (inlined by) setup at /proj/main.cpp:12"
	f := newTestFilter(t, r, nil)

	got := f.Rx("Exception (0):\nepc1=0x40201234\n")
	want := "Exception (0):\nepc1=0x40201234\n" +
		"\nIllegal instruction\n" +
		"  epc1=0x40201234 in inner at lib/a.h:3\n" +
		"     (inlined by) setup at main.cpp:12\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rx() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_Rx_InlinedStackFrames(t *testing.T) {
	r := newFakeResolver(t)
	r.locations[0x4024b26c] = "inner at /proj/lib/a.h:3\n (inlined by) loop at /proj/main.cpp:20"
	f := newTestFilter(t, r, nil)

	got := f.Rx(stackInput)
	want := stackInput +
		"\n0x4024b26c in inner at lib/a.h:3\n" +
		"     (inlined by) loop at main.cpp:20\n\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rx() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_Rx_ResolverFailure(t *testing.T) {
	r := newFakeResolver(t)
	r.failing[0x40201234] = errors.New("exit status 1")
	var diag bytes.Buffer
	f := newTestFilter(t, r, &diag)

	got := f.Rx(exceptionInput + stackInput)

	want := exceptionInput +
		"\nLoadStoreAlignmentCause: Load or store to an unaligned address\n" +
		stackInput + stackBlock
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rx() mismatch (-want +got):\n%s", diff)
	}

	wantDiag := "esp8266_exception_decoder: failed to resolve 0x40201234: exit status 1\n"
	if diag.String() != wantDiag {
		t.Errorf("diag = %q, want %q", diag.String(), wantDiag)
	}
}

func TestFilter_Rx_ProjectRootStripping(t *testing.T) {
	tests := []struct {
		name     string
		root     string
		location string
		want     string
	}{
		{"unix", "/proj", "setup at /proj/src/main.cpp:12", "setup at src/main.cpp:12"},
		{"trailing separator", "/proj/", "setup at /proj/src/main.cpp:12", "setup at src/main.cpp:12"},
		{"windows", `C:\proj`, `setup at C:\proj\src\main.cpp:12`, `setup at src\main.cpp:12`},
		{"outside root", "/proj", "setup at /other/main.cpp:12", "setup at /other/main.cpp:12"},
		{"no root", "", "setup at /proj/main.cpp:12", "setup at /proj/main.cpp:12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ProjectRoot = tt.root
			r := ResolverFunc(func(string, uint64) (string, bool, error) {
				return tt.location, true, nil
			})
			f := New(cfg, "firmware.elf", r, nil, nil)

			got := f.Rx(">>>stack>>>\n3ffe8170:  40201234\n<<<stack<<<\n")
			want := ">>>stack>>>\n3ffe8170:  40201234\n<<<stack<<<\n" +
				"\n0x40201234 in " + tt.want + "\n\n"
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Rx() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilter_Resync(t *testing.T) {
	f := newTestFilter(t, newFakeResolver(t), nil)

	f.Rx(">>>stack>>>\n")
	if f.State() != StateInStack {
		t.Fatalf("State() = %v, want in_stack", f.State())
	}

	for i := 1; i <= 4; i++ {
		out := f.Rx("random noise\n")
		if out != "random noise\n" {
			t.Errorf("line %d: Rx() = %q", i, out)
		}
		if f.State() != StateInStack {
			t.Fatalf("line %d: State() = %v, want in_stack", i, f.State())
		}
	}

	out := f.Rx("random noise\n")
	if out != "random noise\n" {
		t.Errorf("line 5: Rx() = %q, want no annotation", out)
	}
	if f.State() != StateDefault {
		t.Errorf("after 5 unmatched lines State() = %v, want default", f.State())
	}
}

func TestFilter_Resync_FlushesPendingStack(t *testing.T) {
	f := newTestFilter(t, newFakeResolver(t), nil)

	input := ">>>stack>>>\n3ffe8170:  4024b26c\na\nb\nc\nd\ne\n"
	got := f.Rx(input)
	if diff := cmp.Diff(input+stackBlock, got); diff != "" {
		t.Errorf("Rx() mismatch (-want +got):\n%s", diff)
	}
	if f.State() != StateDefault {
		t.Errorf("State() = %v, want default", f.State())
	}
}

func TestFilter_Resync_ReprocessesLine(t *testing.T) {
	f := newTestFilter(t, newFakeResolver(t), nil)

	// The fifth unmatched line completes an exception header.
	input := ">>>stack>>>\n3ffe8170:  4024b26c\nx\ny\nz\nException (9):\nepc1=0x40201234\n"
	got := f.Rx(input)
	want := input + stackBlock + "\n" + exceptionBlock
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rx() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_Resync_CountsConsecutiveMisses(t *testing.T) {
	f := newTestFilter(t, newFakeResolver(t), nil)

	f.Rx(">>>stack>>>\na\nb\nc\nd\n3ffe8170:  4024b26c\ne\nf\ng\nh\n")
	if f.State() != StateInStack {
		t.Fatalf("State() = %v, want in_stack", f.State())
	}

	got := f.Rx("<<<stack<<<\n")
	if diff := cmp.Diff("<<<stack<<<\n"+stackBlock, got); diff != "" {
		t.Errorf("Rx() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_DefaultStateNeverResyncs(t *testing.T) {
	f := newTestFilter(t, newFakeResolver(t), nil)

	f.Rx(strings.Repeat("boot noise\n", 20))
	got := f.Rx(exceptionInput)
	if diff := cmp.Diff(exceptionInput+exceptionBlock, got); diff != "" {
		t.Errorf("Rx() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_StackCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StackCap = 3
	r := ResolverFunc(func(_ string, addr uint64) (string, bool, error) {
		return "fn at f.c:1", true, nil
	})
	f := New(cfg, "firmware.elf", r, nil, nil)

	input := ">>>stack>>>\n" +
		"3ffe8170:  40200001 40200002\n" +
		"3ffe8180:  40200003 40200004\n" +
		"3ffe8190:  40200005 40200006\n" +
		"<<<stack<<<\n"
	got := f.Rx(input)
	want := input + "\n" +
		"0x40200001 in fn at f.c:1\n" +
		"0x40200002 in fn at f.c:1\n" +
		"0x40200003 in fn at f.c:1\n\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rx() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_StackCap_LinesStillResetCounter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StackCap = 1
	f := New(cfg, "firmware.elf", newFakeResolver(t), nil, nil)

	f.Rx(">>>stack>>>\n3ffe8170:  4024b26c\n")
	for i := 0; i < 10; i++ {
		f.Rx("3ffe8180:  4024b26c 00000000\n")
	}
	if f.State() != StateInStack {
		t.Errorf("State() = %v, want in_stack", f.State())
	}
}

func TestFilter_Disabled_PassThrough(t *testing.T) {
	inputs := []string{
		"",
		exceptionInput,
		stackInput,
		"partial line without terminator",
		strings.Repeat("x", 10000),
		"\r\n\r\n",
	}

	filters := map[string]*Filter{
		"Disabled":         Disabled(),
		"New nil resolver": New(DefaultConfig(), "firmware.elf", nil, nil, nil),
	}

	for name, f := range filters {
		if f.Enabled() {
			t.Errorf("%s: Enabled() = true", name)
		}
		for _, in := range inputs {
			if got := f.Rx(in); got != in {
				t.Errorf("%s: Rx(%q) = %q, want identity", name, in, got)
			}
		}
		if got := f.Flush(); got != "" {
			t.Errorf("%s: Flush() = %q, want empty", name, got)
		}
	}
}

func TestFilter_NonDestructive(t *testing.T) {
	inputs := []string{
		exceptionInput,
		stackInput,
		exceptionInput + stackInput + "garbage\r\n" + exceptionInput,
		">>>stack>>>\n3ffe8170:  4024b26c\na\nb\nc\nException (9):\nepc1=0x40201234\n",
	}

	for _, in := range inputs {
		f := newTestFilter(t, newFakeResolver(t), nil)
		out := f.Rx(in)
		if !isSubsequence(in, out) {
			t.Errorf("input %q is not a subsequence of output %q", in, out)
		}
		if !strings.HasPrefix(out, in[:strings.IndexByte(in, '\n')+1]) {
			t.Errorf("output %q does not start with the first input line", out)
		}
	}
}

func TestFilter_SplitChunks(t *testing.T) {
	stream := "boot\r\n" + exceptionInput + "more\n" + stackInput +
		">>>stack>>>\n3ffe8170:  4024b26c\nn1\nn2\nn3\nn4\nn5\n"

	whole := newTestFilter(t, newFakeResolver(t), nil).Rx(stream)

	for i := 0; i <= len(stream); i++ {
		f := newTestFilter(t, newFakeResolver(t), nil)
		got := f.Rx(stream[:i]) + f.Rx(stream[i:])
		if diff := cmp.Diff(whole, got); diff != "" {
			t.Fatalf("split at %d mismatch (-whole +split):\n%s", i, diff)
		}
	}
}

func TestFilter_ByteAtATime(t *testing.T) {
	stream := exceptionInput + stackInput
	f := newTestFilter(t, newFakeResolver(t), nil)

	var b strings.Builder
	for i := 0; i < len(stream); i++ {
		b.WriteString(f.Rx(stream[i : i+1]))
	}
	if diff := cmp.Diff(exceptionInput+exceptionBlock+stackInput+stackBlock, b.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_BoundedCarry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProjectRoot = "/proj"
	cfg.CarryCap = 64
	f := New(cfg, "firmware.elf", newFakeResolver(t), nil, nil)

	chunk := strings.Repeat("A", 25)
	for i := 0; i < 100; i++ {
		if out := f.Rx(chunk); out != chunk {
			t.Fatalf("Rx() modified unterminated input")
		}
		if f.Buffered() > cfg.CarryCap {
			t.Fatalf("Buffered() = %d, exceeds cap %d", f.Buffered(), cfg.CarryCap)
		}
	}

	// The decoder keeps working once the runaway line ends.
	f.Rx("\n")
	got := f.Rx(exceptionInput)
	if diff := cmp.Diff(exceptionInput+exceptionBlock, got); diff != "" {
		t.Errorf("Rx() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_Flush(t *testing.T) {
	f := newTestFilter(t, newFakeResolver(t), nil)

	input := ">>>stack>>>\n3ffe8170:  4024b26c\n"
	if got := f.Rx(input); got != input {
		t.Errorf("Rx() = %q, want %q", got, input)
	}

	if got := f.Flush(); got != stackBlock {
		t.Errorf("Flush() = %q, want %q", got, stackBlock)
	}
	if f.State() != StateDefault {
		t.Errorf("State() = %v after Flush, want default", f.State())
	}
	if got := f.Flush(); got != "" {
		t.Errorf("second Flush() = %q, want empty", got)
	}
}

func TestExceptionCause(t *testing.T) {
	tests := []struct {
		code   int
		prefix string
		ok     bool
	}{
		{0, "Illegal instruction", true},
		{9, "LoadStoreAlignmentCause", true},
		{28, "LoadProhibited", true},
		{29, "StoreProhibited", true},
		{30, "", false},
		{-1, "", false},
	}

	for _, tt := range tests {
		got, ok := ExceptionCause(tt.code)
		if ok != tt.ok || !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("ExceptionCause(%d) = %q, %v; want prefix %q, %v", tt.code, got, ok, tt.prefix, tt.ok)
		}
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	got := Config{ProjectRoot: "/proj", StackCap: 10}.withDefaults()

	want := DefaultConfig()
	want.ProjectRoot = "/proj"
	want.StackCap = 10
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("withDefaults() mismatch (-want +got):\n%s", diff)
	}
}

// isSubsequence reports whether every byte of sub appears in s in order.
func isSubsequence(sub, s string) bool {
	i := 0
	for j := 0; j < len(s) && i < len(sub); j++ {
		if s[j] == sub[i] {
			i++
		}
	}
	return i == len(sub)
}
