package types

import (
	"bytes"
	"cmp"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"golang.org/x/text/unicode/norm"
)

// DateLayout is the canonical rendering of DATE values.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// integralContext truncates toward zero when a DECIMAL becomes a LONG.
var integralContext = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(34)
	c.Rounding = apd.RoundDown
	return c
}()

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// stringFactory serves every string-backed type.
type stringFactory string

func (f stringFactory) TypeName() string { return string(f) }

func (f stringFactory) Create(value any) (any, error) {
	return norm.NFC.String(render(value)), nil
}

func (f stringFactory) AsString(value any) string {
	s, _ := value.(string)
	return s
}

func (f stringFactory) Compare(a, b any) int {
	return strings.Compare(f.AsString(a), f.AsString(b))
}

type binaryFactory struct{}

func (binaryFactory) TypeName() string { return Binary }

func (binaryFactory) Create(value any) (any, error) {
	if b, ok := value.([]byte); ok {
		return bytes.Clone(b), nil
	}
	return []byte(render(value)), nil
}

func (binaryFactory) AsString(value any) string {
	b, _ := value.([]byte)
	return string(b)
}

func (binaryFactory) Compare(a, b any) int {
	x, _ := a.([]byte)
	y, _ := b.([]byte)
	return bytes.Compare(x, y)
}

type longFactory struct{}

func (longFactory) TypeName() string { return Long }

func (longFactory) Create(value any) (any, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		return nil, &ConversionError{TypeName: Long, Value: v}
	case time.Time:
		return v.UnixMilli(), nil
	case *apd.Decimal:
		n, err := v.Int64()
		if err != nil {
			var truncated apd.Decimal
			if _, err := integralContext.RoundToIntegralValue(&truncated, v); err != nil {
				return nil, &ConversionError{TypeName: Long, Value: v, Err: err}
			}
			if n, err = truncated.Int64(); err != nil {
				return nil, &ConversionError{TypeName: Long, Value: v, Err: err}
			}
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, &ConversionError{TypeName: Long, Value: v, Err: err}
		}
		return n, nil
	default:
		return nil, &ConversionError{TypeName: Long, Value: v}
	}
}

func (longFactory) AsString(value any) string {
	n, _ := value.(int64)
	return strconv.FormatInt(n, 10)
}

func (longFactory) Compare(a, b any) int {
	x, _ := a.(int64)
	y, _ := b.(int64)
	return cmp.Compare(x, y)
}

type doubleFactory struct{}

func (doubleFactory) TypeName() string { return Double }

func (doubleFactory) Create(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case time.Time:
		return float64(v.UnixMilli()), nil
	case *apd.Decimal:
		f, err := v.Float64()
		if err != nil {
			return nil, &ConversionError{TypeName: Double, Value: v, Err: err}
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, &ConversionError{TypeName: Double, Value: v, Err: err}
		}
		return f, nil
	default:
		return nil, &ConversionError{TypeName: Double, Value: v}
	}
}

func (doubleFactory) AsString(value any) string {
	f, _ := value.(float64)
	return formatDouble(f)
}

func (doubleFactory) Compare(a, b any) int {
	x, _ := a.(float64)
	y, _ := b.(float64)
	return cmp.Compare(x, y)
}

// formatDouble always includes a fraction or exponent, so 3 renders as "3.0".
func formatDouble(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

type decimalFactory struct{}

func (decimalFactory) TypeName() string { return Decimal }

func (decimalFactory) Create(value any) (any, error) {
	switch v := value.(type) {
	case *apd.Decimal:
		return new(apd.Decimal).Set(v), nil
	case int64:
		return apd.New(v, 0), nil
	case int:
		return apd.New(int64(v), 0), nil
	case float64:
		d := new(apd.Decimal)
		if _, err := d.SetFloat64(v); err != nil {
			return nil, &ConversionError{TypeName: Decimal, Value: v, Err: err}
		}
		return d, nil
	case string:
		d, _, err := apd.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, &ConversionError{TypeName: Decimal, Value: v, Err: err}
		}
		return d, nil
	default:
		return nil, &ConversionError{TypeName: Decimal, Value: v}
	}
}

// AsString strips trailing zeros so 3.10 and 3.1 share one form.
func (decimalFactory) AsString(value any) string {
	d, ok := value.(*apd.Decimal)
	if !ok || d == nil {
		return "0"
	}
	var reduced apd.Decimal
	reduced.Reduce(d)
	return reduced.Text('f')
}

func (decimalFactory) Compare(a, b any) int {
	x, _ := a.(*apd.Decimal)
	y, _ := b.(*apd.Decimal)
	if x == nil || y == nil {
		return 0
	}
	return x.Cmp(y)
}

type booleanFactory struct{}

func (booleanFactory) TypeName() string { return Boolean }

func (booleanFactory) Create(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch {
		case strings.EqualFold(strings.TrimSpace(v), "true"):
			return true, nil
		case strings.EqualFold(strings.TrimSpace(v), "false"):
			return false, nil
		}
		return nil, &ConversionError{TypeName: Boolean, Value: v}
	default:
		return nil, &ConversionError{TypeName: Boolean, Value: v}
	}
}

func (booleanFactory) AsString(value any) string {
	b, _ := value.(bool)
	return strconv.FormatBool(b)
}

func (booleanFactory) Compare(a, b any) int {
	x, _ := a.(bool)
	y, _ := b.(bool)
	switch {
	case x == y:
		return 0
	case !x:
		return -1
	default:
		return 1
	}
}

type dateFactory struct{}

func (dateFactory) TypeName() string { return Date }

func (dateFactory) Create(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, &ConversionError{TypeName: Date, Value: v, Err: errors.New("not an ISO-8601 date")}
	default:
		return nil, &ConversionError{TypeName: Date, Value: v}
	}
}

func (dateFactory) AsString(value any) string {
	t, _ := value.(time.Time)
	return t.Format(DateLayout)
}

func (dateFactory) Compare(a, b any) int {
	x, _ := a.(time.Time)
	y, _ := b.(time.Time)
	return x.Compare(y)
}

// render produces the canonical text of a value of any supported type.
func render(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return formatDouble(v)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(DateLayout)
	case *apd.Decimal:
		return decimalFactory{}.AsString(v)
	case nil:
		return ""
	default:
		return ""
	}
}

// Numeric returns the float64 projection of a numeric or date value.
func Numeric(value any) (float64, bool) {
	switch v := value.(type) {
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case float64:
		return v, true
	case time.Time:
		return float64(v.UnixMilli()), true
	case *apd.Decimal:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
