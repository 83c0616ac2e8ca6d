package mcpserver

// NamingContract describes how library items are named and stored so that
// LLM consumers create, rename and import items the document can load.
const NamingContract = `# XFL Library Naming Contract

Every item in the document library is addressed by its qualified name.

## Names

- A qualified name is a slash-separated path: ` + "`Props/Ball`" + ` is the item
  ` + "`Ball`" + ` inside the folder ` + "`Props`" + `.
- Names are case-sensitive and unique across the whole library.
- Leading and trailing slashes are not part of a name.
- A folder exists as an item of its own. Creating ` + "`Props/Ball`" + ` creates
  ` + "`Props`" + ` when it is missing.

## Kinds

| Kind   | Name                       | Stored as                         |
|--------|----------------------------|-----------------------------------|
| folder | ` + "`Props`" + `                  | entry in DOMDocument.xml          |
| symbol | ` + "`Props/Ball`" + `             | LIBRARY/Props/Ball.xml            |
| bitmap | ` + "`Art/face.png`" + ` (keeps extension) | LIBRARY/Art/face.png      |
| sound  | ` + "`Sfx/click.wav`" + ` (keeps extension) | LIBRARY/Sfx/click.wav    |

Symbol types are ` + "`movie clip`" + `, ` + "`graphic`" + ` and ` + "`button`" + `.
Bitmaps accept png, jpg, gif and bmp. Sounds accept wav, mp3 and aiff.

## Rules

1. Renaming an item rewrites every placement that references it. A rename
   into a folder that does not exist fails; create the folder first with
   ` + "`add_symbol`" + ` and type ` + "`folder`" + `.
2. Removing an item prunes every placement that references it.
3. Moving a folder moves everything inside it.
4. Importing never overwrites an item unless asked to, and only with an
   item of the same kind.
5. Importing a symbol from another document brings along every item its
   timeline references. Items already present by name are kept as they are.
`
