package topics

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"golang.org/x/crypto/sha3"
)

// SignatureHash returns the keccak256 hash of a canonical event signature.
func SignatureHash(signature string) common.Hash {
	return keccak([]byte(signature))
}

// EncodeIndexedValue encodes one indexed parameter value into its 32-byte topic form.
// A nil value reports ok=false, meaning the slot is not filtered.
//
// Addresses are left-padded, integers and booleans use ABI scalar encoding, fixed bytes
// given as hex are left-padded as-is and dynamic string/bytes values are hashed the way
// they are stored on chain. Anything else goes through best-effort ABI packing and finally
// string coercion.
func EncodeIndexedValue(value interface{}, typ string) (common.Hash, bool) {
	if isNil(value) {
		return common.Hash{}, false
	}

	if !strings.Contains(typ, "[") {
		switch {
		case typ == "address":
			if addr, ok := toAddress(value); ok {
				return common.BytesToHash(addr.Bytes()), true
			}
		case typ == "bool":
			if b, ok := toBool(value); ok {
				if b {
					return common.BigToHash(big.NewInt(1)), true
				}
				return common.Hash{}, true
			}
		case strings.HasPrefix(typ, "uint") || strings.HasPrefix(typ, "int"):
			if n, ok := toBigInt(value); ok && n.BitLen() <= 256 {
				return common.BytesToHash(math.U256Bytes(new(big.Int).Set(n))), true
			}
		case typ == "string":
			if s, ok := value.(string); ok {
				return keccak([]byte(s)), true
			}
		case typ == "bytes":
			if data, ok := toBytes(value); ok {
				return keccak(data), true
			}
		case strings.HasPrefix(typ, "bytes"):
			if data, ok := toBytes(value); ok && len(data) <= common.HashLength {
				return common.BytesToHash(data), true
			}
		}
	}

	if h, ok := packValue(value, typ); ok {
		return h, true
	}
	return coerceString(value), true
}

// encodeSlot turns one caller value into a topic slot. Lists are OR-matched; a nil anywhere
// in the list widens the slot to match-any.
func encodeSlot(value interface{}, typ string) []common.Hash {
	if isNil(value) {
		return nil
	}

	var items []interface{}
	switch typed := value.(type) {
	case []interface{}:
		items = typed
	case []string:
		for _, s := range typed {
			items = append(items, s)
		}
	default:
		h, _ := EncodeIndexedValue(value, typ)
		return []common.Hash{h}
	}

	slot := make([]common.Hash, 0, len(items))
	for _, item := range items {
		h, ok := EncodeIndexedValue(item, typ)
		if !ok {
			return nil
		}
		slot = append(slot, h)
	}
	if len(slot) == 0 {
		return nil
	}
	return slot
}

func packValue(value interface{}, typ string) (common.Hash, bool) {
	t, err := abi.NewType(typ, "", nil)
	if err != nil {
		return common.Hash{}, false
	}
	packed, err := abi.Arguments{{Type: t}}.Pack(value)
	if err != nil {
		return common.Hash{}, false
	}
	if len(packed) == common.HashLength {
		return common.BytesToHash(packed), true
	}
	return keccak(packed), true
}

func coerceString(value interface{}) common.Hash {
	s := fmt.Sprint(value)
	if h, ok := hexToHash(s); ok {
		return h
	}
	return keccak([]byte(s))
}

func hexToHash(s string) (common.Hash, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Hash{}, false
	}
	data, err := hexutil.Decode("0x" + s[2:])
	if err != nil || len(data) > common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(data), true
}

func toAddress(value interface{}) (common.Address, bool) {
	switch typed := value.(type) {
	case common.Address:
		return typed, true
	case *common.Address:
		return *typed, true
	case string:
		if common.IsHexAddress(typed) {
			return common.HexToAddress(typed), true
		}
	}
	return common.Address{}, false
}

func toBool(value interface{}) (bool, bool) {
	switch typed := value.(type) {
	case bool:
		return typed, true
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	default:
		if n, ok := toBigInt(value); ok && n.IsInt64() && (n.Int64() == 0 || n.Int64() == 1) {
			return n.Int64() == 1, true
		}
	}
	return false, false
}

func toBigInt(value interface{}) (*big.Int, bool) {
	switch typed := value.(type) {
	case *big.Int:
		return typed, true
	case big.Int:
		return &typed, true
	case string:
		return new(big.Int).SetString(strings.TrimSpace(typed), 0)
	case json.Number:
		return new(big.Int).SetString(typed.String(), 10)
	case float64:
		f := new(big.Float).SetFloat64(typed)
		if !f.IsInt() {
			return nil, false
		}
		n, _ := f.Int(nil)
		return n, true
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(v.Uint()), true
	}
	return nil, false
}

func toBytes(value interface{}) ([]byte, bool) {
	switch typed := value.(type) {
	case []byte:
		return typed, true
	case common.Hash:
		return typed.Bytes(), true
	case string:
		if !strings.HasPrefix(typed, "0x") && !strings.HasPrefix(typed, "0X") {
			return nil, false
		}
		data, err := hexutil.Decode("0x" + typed[2:])
		if err != nil {
			return nil, false
		}
		return data, true
	}
	return nil, false
}

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func keccak(data []byte) common.Hash {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	var h common.Hash
	hasher.Sum(h[:0])
	return h
}
