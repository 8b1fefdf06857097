package repository

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/petalmarket/petal/internal/domain/order"
)

// Option snapshots are persisted as JSONB with the wire shape
//
//	{"selectedOptionIds": [...], "selectedOptions": [{"id","name","priceModifier"}, ...]}
//
// Price modifiers are written as plain JSON numbers from the decimal's exact
// string form, never through float64.

func encodeOptionSnapshot(s order.OptionSnapshot) ([]byte, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("selectedOptionIds", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, id := range s.SelectedOptionIDs {
					e.Str(id)
				}
			})
		})
		e.Field("selectedOptions", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, o := range s.SelectedOptions {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(o.Name) })
						e.Field("priceModifier", func(e *jx.Encoder) { e.RawStr(o.PriceModifier.String()) })
					})
				}
			})
		})
	})
	return e.Bytes(), nil
}

func decodeOptionSnapshot(data []byte) (order.OptionSnapshot, error) {
	s := order.OptionSnapshot{
		SelectedOptionIDs: []string{},
		SelectedOptions:   []order.SnapshotOption{},
	}
	if len(data) == 0 {
		return s, nil
	}

	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "selectedOptionIds":
			return d.Arr(func(d *jx.Decoder) error {
				id, err := d.Str()
				if err != nil {
					return err
				}
				s.SelectedOptionIDs = append(s.SelectedOptionIDs, id)
				return nil
			})
		case "selectedOptions":
			return d.Arr(func(d *jx.Decoder) error {
				var o order.SnapshotOption
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "id":
						v, err := d.Str()
						o.ID = v
						return err
					case "name":
						v, err := d.Str()
						o.Name = v
						return err
					case "priceModifier":
						n, err := d.Num()
						if err != nil {
							return err
						}
						o.PriceModifier, err = decimal.NewFromString(strings.Trim(string(n), `"`))
						return err
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				s.SelectedOptions = append(s.SelectedOptions, o)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return s, errors.Wrap(err, "decode option snapshot")
	}
	return s, nil
}
