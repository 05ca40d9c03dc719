// Package datatools gives the data analyst read access to the analytics
// database: listing and describing tables, running SELECT queries and
// searching the business documentation. IngestCSV loads source data into
// that database.
package datatools
