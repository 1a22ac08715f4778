package memory

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type is the persistence lifetime class of a memory item.
// It is fixed at creation and selects the destination file the item is
// eventually appended to.
type Type int

const (
	Short Type = iota
	Mid
	Long
)

func (t Type) String() string {
	switch t {
	case Short:
		return "short"
	case Mid:
		return "mid"
	case Long:
		return "long"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// ParseType converts a type name ("short", "mid", "long") to a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short":
		return Short, nil
	case "mid":
		return Mid, nil
	case "long":
		return Long, nil
	default:
		return Short, fmt.Errorf("unknown memory type %q", s)
	}
}

// Category classifies what a memory item is about.
// The integer values are the wire codes used in the persisted line format and
// must not be reordered.
type Category int

const (
	Work Category = iota
	Family
	Friendship
	Happiness
	Other
)

func (c Category) String() string {
	switch c {
	case Work:
		return "work"
	case Family:
		return "family"
	case Friendship:
		return "friendship"
	case Happiness:
		return "happiness"
	case Other:
		return "other"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Code returns the integer wire code of the category.
func (c Category) Code() int { return int(c) }

// CategoryFromCode converts a persisted wire code back to a Category.
func CategoryFromCode(code int) (Category, error) {
	if code < int(Work) || code > int(Other) {
		return Other, fmt.Errorf("unknown category code %d", code)
	}
	return Category(code), nil
}

// ParseCategory converts a category name to a Category.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "work":
		return Work, nil
	case "family":
		return Family, nil
	case "friendship":
		return Friendship, nil
	case "happiness":
		return Happiness, nil
	case "other", "":
		return Other, nil
	default:
		return Other, fmt.Errorf("unknown memory category %q", s)
	}
}

// Item is a single persisted memory fact.
//
// Content doubles as the item's identity key for caching and weighting; no
// separate ID is minted. Timestamp is the creation time encoded as epoch
// seconds and is never mutated after creation.
type Item struct {
	Content   string
	Type      Type
	Category  Category
	Timestamp string
}

// NewItem creates an item stamped with the current time.
func NewItem(content string, typ Type, category Category) Item {
	return Item{
		Content:   content,
		Type:      typ,
		Category:  category,
		Timestamp: Now(),
	}
}

// CreatedAt decodes the item's timestamp. Malformed timestamps yield the
// zero time.
func (it Item) CreatedAt() time.Time {
	sec, err := strconv.ParseInt(it.Timestamp, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// Line encodes the item in the persisted format: content|category_code|timestamp.
// The Type is not part of the line; it is implied by the destination file.
func (it Item) Line() string {
	return it.Content + "|" + strconv.Itoa(it.Category.Code()) + "|" + it.Timestamp
}

// ParseLine decodes a persisted line into an item of the given type.
// The content may itself contain '|', so the line is split from the right.
func ParseLine(line string, typ Type) (Item, error) {
	tsSep := strings.LastIndexByte(line, '|')
	if tsSep <= 0 {
		return Item{}, fmt.Errorf("malformed memory line %q", line)
	}
	catSep := strings.LastIndexByte(line[:tsSep], '|')
	if catSep <= 0 {
		return Item{}, fmt.Errorf("malformed memory line %q", line)
	}

	code, err := strconv.Atoi(line[catSep+1 : tsSep])
	if err != nil {
		return Item{}, fmt.Errorf("malformed category in line %q: %w", line, err)
	}
	category, err := CategoryFromCode(code)
	if err != nil {
		return Item{}, fmt.Errorf("line %q: %w", line, err)
	}

	return Item{
		Content:   line[:catSep],
		Type:      typ,
		Category:  category,
		Timestamp: line[tsSep+1:],
	}, nil
}

// Now returns the current time in the timestamp encoding used by Item.
func Now() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}
