// internal/models/card.go
package models

import "fmt"

// Color is one of the four play colors, or ColorWild for wild cards.
type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorWild   Color = "wild"
)

// PlayColors lists the colors a wild can name, in deck-building order.
var PlayColors = []Color{ColorRed, ColorBlue, ColorGreen, ColorYellow}

// IsPlayColor reports whether c is one of the four standard colors.
func (c Color) IsPlayColor() bool {
	switch c {
	case ColorRed, ColorBlue, ColorGreen, ColorYellow:
		return true
	}
	return false
}

// Face is the value printed on a card. Number faces are "0" through "9".
type Face string

const (
	FaceSkip        Face = "skip"
	FaceReverse     Face = "reverse"
	FaceDraw2       Face = "draw2"
	FaceWild        Face = "wild"
	FaceWild4       Face = "wild4"
	FaceWildSwap    Face = "wildSwap"
	FaceWildShuffle Face = "wildShuffle"
	FaceWildCustom  Face = "wildCustom"
)

// NumberFaces are the ten numeric faces.
var NumberFaces = []Face{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}

// ActionFaces are the colored power cards.
var ActionFaces = []Face{FaceSkip, FaceReverse, FaceDraw2}

// IsNumber reports whether f is one of "0".."9".
func (f Face) IsNumber() bool {
	return len(f) == 1 && f[0] >= '0' && f[0] <= '9'
}

// IsAction reports whether f is skip, reverse or draw2.
func (f Face) IsAction() bool {
	return f == FaceSkip || f == FaceReverse || f == FaceDraw2
}

// IsExpansion reports whether f only exists in expansion decks.
func (f Face) IsExpansion() bool {
	return f == FaceWildSwap || f == FaceWildShuffle || f == FaceWildCustom
}

// Card is immutable once dealt. IDs are unique within a deck and never reused.
type Card struct {
	ID    string `json:"id"`
	Color Color  `json:"color"`
	Value Face   `json:"value"`
}

// IsWild reports whether the card carries no color of its own.
func (c Card) IsWild() bool {
	return c.Color == ColorWild
}

// Points is the card's value when it is left in a losing hand.
func (c Card) Points() int {
	switch {
	case c.Value.IsNumber():
		return int(c.Value[0] - '0')
	case c.Value.IsAction():
		return 20
	case c.Value.IsExpansion():
		return 40
	case c.Value == FaceWild, c.Value == FaceWild4:
		return 50
	}
	return 0
}

func (c Card) String() string {
	return fmt.Sprintf("%s %s", c.Color, c.Value)
}
