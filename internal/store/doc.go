// Package store is the SQLite reference implementation of the remote
// catalog service.
//
// It holds categories with ordered drill paths, catalog data items with
// their drill values and output factors, and the containers and items
// calculations create. Store implements remote.Service and
// remote.MetadataSource, so it can back a calculation directly or be served
// over HTTP by remote/httpapi.
//
// An item's outputs are computed on read: each output of its data item is
// factor times the numeric item value named by multiply_by, or the factor
// alone when multiply_by is empty.
//
// Catalog queries are compiled by querysql; all listings are ordered
// deterministically.
package store
