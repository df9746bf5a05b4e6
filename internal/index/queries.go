package index

// SQL query constants, grouped by domain.

const (
	sqlGetEntry = `
SELECT Directory, Name, Size, Created, Modified, Attributes, LastScanned
FROM FileIndex WHERE Directory = ? AND Name = ?`

	sqlUpsertEntry = `
INSERT INTO FileIndex (Directory, Name, Size, Created, Modified, Attributes, LastScanned)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(Directory, Name) DO UPDATE SET
  Size = excluded.Size,
  Created = excluded.Created,
  Modified = excluded.Modified,
  Attributes = excluded.Attributes,
  LastScanned = excluded.LastScanned`

	sqlDeleteEntry = `DELETE FROM FileIndex WHERE Directory = ? AND Name = ?`

	sqlDeleteByDirPrefix = `
DELETE FROM FileIndex WHERE Directory = ? OR Directory LIKE ? ESCAPE '\'`

	sqlDeleteOlderThan = `DELETE FROM FileIndex WHERE LastScanned < ?`

	sqlDeleteOlderThanUnder = `
DELETE FROM FileIndex
WHERE LastScanned < ? AND (Directory = ? OR Directory LIKE ? ESCAPE '\')`

	sqlSearch = `
SELECT Directory, Name, Size, Created, Modified, Attributes, LastScanned
FROM FileIndex
WHERE (Directory || '/' || Name) LIKE ? ESCAPE '\'
ORDER BY Directory, Name`

	sqlCountUnder = `
SELECT COUNT(*) FROM FileIndex WHERE Directory = ? OR Directory LIKE ? ESCAPE '\'`

	sqlRenameDirectoryPrefix = `
UPDATE FileIndex
SET Directory = ? || substr(Directory, ?)
WHERE Directory = ? OR Directory LIKE ? ESCAPE '\'`
)

const (
	sqlGetTracking = `
SELECT FullPath, EnabledAt, LastHash, LastBackupMtime FROM TrackingFile WHERE FullPath = ?`

	sqlUpsertTracking = `
INSERT INTO TrackingFile (FullPath, EnabledAt, LastHash, LastBackupMtime)
VALUES (?, ?, ?, ?)
ON CONFLICT(FullPath) DO UPDATE SET
  EnabledAt = excluded.EnabledAt,
  LastHash = excluded.LastHash,
  LastBackupMtime = excluded.LastBackupMtime`

	sqlDeleteTracking = `DELETE FROM TrackingFile WHERE FullPath = ?`

	sqlListTracking = `SELECT FullPath, EnabledAt, LastHash, LastBackupMtime FROM TrackingFile`
)

const (
	sqlGetSnapshot = `SELECT Value FROM ConfigSnapshot WHERE Key = ?`

	sqlSaveSnapshot = `
INSERT INTO ConfigSnapshot (Key, Value) VALUES (?, ?)
ON CONFLICT(Key) DO UPDATE SET Value = excluded.Value`
)

const (
	sqlInsertTombstone = `
INSERT INTO Tombstone (ID, Directory, Name, DeletedAt) VALUES (?, ?, ?, ?)`

	sqlPruneTombstonesBefore = `DELETE FROM Tombstone WHERE DeletedAt < ?`
)
