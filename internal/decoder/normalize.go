package decoder

import (
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var bigIntType = reflect.TypeOf((*big.Int)(nil))

// normalizeValue converts unpacked ABI values into JSON friendly forms: every integer becomes
// a decimal string, addresses and byte values become hex.
func normalizeValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case nil:
		return nil
	case *big.Int:
		if typed == nil {
			return nil
		}
		return typed.String()
	case common.Address:
		return typed.Hex()
	case common.Hash:
		return typed.Hex()
	case []byte:
		return hexutil.Encode(typed)
	case string, bool:
		return typed
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			buf := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(buf), v)
			return hexutil.Encode(buf)
		}
		return normalizeList(v)
	case reflect.Slice:
		return normalizeList(v)
	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		if v.Type() == bigIntType {
			return v.Interface().(*big.Int).String()
		}
		return normalizeValue(v.Elem().Interface())
	case reflect.Struct:
		out := make(map[string]interface{}, v.NumField())
		for i := 0; i < v.NumField(); i++ {
			field := v.Type().Field(i)
			if !field.IsExported() {
				continue
			}
			name := field.Name
			if tag := strings.Split(field.Tag.Get("json"), ",")[0]; tag != "" {
				name = tag
			}
			out[name] = normalizeValue(v.Field(i).Interface())
		}
		return out
	}
	return value
}

func normalizeList(v reflect.Value) []interface{} {
	out := make([]interface{}, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		out = append(out, normalizeValue(v.Index(i).Interface()))
	}
	return out
}
