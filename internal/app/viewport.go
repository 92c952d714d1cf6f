package app

import "time"

// ViewportClass is the derived device class.
type ViewportClass string

const (
	ViewportMobile  ViewportClass = "mobile"
	ViewportTablet  ViewportClass = "tablet"
	ViewportDesktop ViewportClass = "desktop"
)

const (
	mobileMaxWidth = 640
	tabletMaxWidth = 1024

	// SizeDebounce absorbs resize storms before reclassifying.
	SizeDebounce = 150 * time.Millisecond
)

func classForWidth(width int) ViewportClass {
	switch {
	case width <= mobileMaxWidth:
		return ViewportMobile
	case width <= tabletMaxWidth:
		return ViewportTablet
	default:
		return ViewportDesktop
	}
}
