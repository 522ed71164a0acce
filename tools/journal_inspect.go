// Command journal_inspect prints the transcript stored in a relay journal.
package main

import (
	"chat-relay/repositories"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to the journal directory")
	group := flag.String("group", "", "Only show this group")
	flag.Parse()

	prefix := "msg:"
	if *group != "" {
		prefix = fmt.Sprintf("msg:%s:", *group)
	}

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Group", "Author", "Lang", "Content", "ID"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				entry, err := repositories.DecodeEntry(v)
				if err != nil {
					// Keep scanning, one bad value should not hide the rest
					fmt.Printf("Error decoding key %s: %v\n", string(item.Key()), err)
					return nil
				}
				id := entry.ID.String()
				table.Append([]string{
					entry.At.Format("2006-01-02 15:04:05"),
					entry.Group,
					entry.Author,
					entry.Lang,
					entry.Content,
					id[:8],
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil && strings.Contains(err.Error(), "Log truncate required") {
		// A relay killed mid-write leaves a log to truncate, which needs a writable open first
		repair, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil).WithBypassLockGuard(true))
		if err != nil {
			return nil, fmt.Errorf("repair failed: %w", err)
		}
		_ = repair.Close()
		return badger.Open(opts)
	}
	return db, err
}
