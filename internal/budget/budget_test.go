package budget

import "testing"

func TestEstimateTokens(t *testing.T) {
    cases := []struct{
        in   string
        want int
    }{
        {"", 0},
        {"a", 1},           // ceil(1/4)=1
        {"abc", 1},
        {"abcd", 1},
        {"abcde", 2},
        {"żółw", 1},        // 4 characters, 8 bytes
        {"żółwż", 2},
    }
    for _, c := range cases {
        if got := EstimateTokens(c.in); got != c.want {
            t.Fatalf("EstimateTokens(%q) = %d, want %d", c.in, got, c.want)
        }
    }
}

func TestHeadroomTokens(t *testing.T) {
    if HeadroomTokens(0) != 0 {
        t.Fatal("disabled window has no headroom")
    }
    if HeadroomTokens(8192) != 512 { // 5% is 410, floor is 512
        t.Fatalf("headroom should floor to 512, got %d", HeadroomTokens(8192))
    }
    if HeadroomTokens(200_000) != 10_000 {
        t.Fatalf("headroom should be 5%% of large windows, got %d", HeadroomTokens(200_000))
    }
    if HeadroomTokens(100) != 100 {
        t.Fatalf("headroom must not exceed the window")
    }
}

func TestRemainingAndFits(t *testing.T) {
    window := 200_000
    if rem := Remaining(window, 150_000); rem != 40_000 {
        t.Fatalf("Remaining = %d, want 40000", rem)
    }
    if !Fits(window, 190_000) {
        t.Fatal("190k should fit a 200k window with 10k headroom")
    }
    if Fits(window, 190_001) {
        t.Fatal("190001 should not fit")
    }
    if Remaining(window, 500_000) != 0 {
        t.Fatal("Remaining should clamp at 0")
    }
    if !Fits(0, 1<<30) {
        t.Fatal("zero window disables the check")
    }
}
