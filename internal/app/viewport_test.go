package app

import "testing"

func TestClassForWidth(t *testing.T) {
	cases := []struct {
		width int
		want  ViewportClass
	}{
		{320, ViewportMobile},
		{640, ViewportMobile},
		{641, ViewportTablet},
		{1024, ViewportTablet},
		{1025, ViewportDesktop},
		{1920, ViewportDesktop},
	}
	for _, tc := range cases {
		if got := classForWidth(tc.width); got != tc.want {
			t.Errorf("classForWidth(%d) = %q, want %q", tc.width, got, tc.want)
		}
	}
}
