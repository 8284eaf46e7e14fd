// Package memory provides the flat physical memory of the simulated machine.
package memory

import (
	"errors"
	"fmt"
)

// ErrAccessBeyondCapacity is returned when an access touches any byte at or
// beyond the capacity of the storage. Nothing is read or written in that case.
var ErrAccessBeyondCapacity = errors.New(
	"accessing physical address beyond the storage capacity")

// A Record is a fixed-size value that can be stored in a Storage. Records are
// copied in and out through their encoding, never aliased onto the raw bytes.
type Record interface {
	// ByteSize returns the number of bytes of the encoding.
	ByteSize() uint64

	// Decode fills the record from buf, which holds ByteSize bytes.
	Decode(buf []byte)

	// Encode writes the record into buf, which holds ByteSize bytes.
	Encode(buf []byte)
}

// A Storage keeps the bytes of the simulated physical memory.
//
// The storage is managed in units of one page. A unit is only allocated when
// it is written for the first time; reading an untouched unit yields zeros.
// From the outside the storage behaves like a zero-initialized flat buffer of
// the given capacity.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity in bytes.
func NewStorage(capacity uint64) *Storage {
	storage := new(Storage)

	storage.unitSize = 4096
	storage.capacity = capacity
	storage.data = make(map[uint64][]byte)

	return storage
}

// NewStorageInMegabytes creates a storage of mb megabytes.
func NewStorageInMegabytes(mb uint64) *Storage {
	return NewStorage(mb << 20)
}

// Capacity returns the size of the storage in bytes.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) mustBeInBound(address, length uint64) error {
	if address > s.capacity || length > s.capacity-address {
		return fmt.Errorf("%w: 0x%x+%d (capacity 0x%x)",
			ErrAccessBeyondCapacity, address, length, s.capacity)
	}

	return nil
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return
}

func (s *Storage) createOrGetStorageUnit(baseAddr uint64) []byte {
	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit
}

// Read copies length bytes starting at address.
func (s *Storage) Read(address uint64, length uint64) ([]byte, error) {
	if err := s.mustBeInBound(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < length {
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenToRead := min(length-dataOffset, s.unitSize-inUnitAddr)

		unit, ok := s.data[baseAddr]
		if ok {
			copy(res[dataOffset:dataOffset+lenToRead],
				unit[inUnitAddr:inUnitAddr+lenToRead])
		}

		dataOffset += lenToRead
		currAddr += lenToRead
	}

	return res, nil
}

// Write copies data into the storage starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	length := uint64(len(data))
	if err := s.mustBeInBound(address, length); err != nil {
		return err
	}

	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < length {
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenToWrite := min(length-dataOffset, s.unitSize-inUnitAddr)

		unit := s.createOrGetStorageUnit(baseAddr)
		copy(unit[inUnitAddr:inUnitAddr+lenToWrite],
			data[dataOffset:dataOffset+lenToWrite])

		dataOffset += lenToWrite
		currAddr += lenToWrite
	}

	return nil
}

// ReadRecord decodes the record stored at address into r.
func (s *Storage) ReadRecord(address uint64, r Record) error {
	buf, err := s.Read(address, r.ByteSize())
	if err != nil {
		return err
	}

	r.Decode(buf)

	return nil
}

// EditRecord decodes the record stored at address into r, lets edit change
// r, and encodes the result back into the same place. The bound check runs
// before anything is decoded, so edit is not called for an invalid address.
func (s *Storage) EditRecord(address uint64, r Record, edit func()) error {
	if err := s.ReadRecord(address, r); err != nil {
		return err
	}

	edit()

	buf := make([]byte, r.ByteSize())
	r.Encode(buf)

	return s.Write(address, buf)
}

// NumAllocatedUnits returns how many page units have been materialized.
func (s *Storage) NumAllocatedUnits() int {
	return len(s.data)
}
