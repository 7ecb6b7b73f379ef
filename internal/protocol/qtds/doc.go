// Package qtds encodes and decodes the Qt 4.2 QDataStream subset spoken by
// Quassel cores: QVariant headers, scalar types, QString (UTF-16BE),
// QByteArray, date/time values, nestable lists and maps, and the named user
// types (BufferInfo, Message, the id wrappers and map-bodied structs).
//
// Decoding untrusted input is bounded by MaxAllocation, MaxCollectionCount
// and MaxDepth.
package qtds
