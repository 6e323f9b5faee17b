package bot

const helpText = `## Mode prefixes (combinable)
| Symbol | Meaning |
|:---:|------|
| ` + "`&`" + ` | private mode |
| ` + "`\"`" + ` | text mode |

## Persona management
| Command | Effect | Example |
|------|------|------|
| ` + "`##name model prompt`" + ` | create/update | ` + "`##Tutor gpt-4o You teach Go`" + ` |
| ` + "`##:model`" + ` | batch-generate descriptions | ` + "`##:gpt-4o`" + ` |
| ` + "`name~=new`" + ` | rename | ` + "`Tutor~=Coach`" + ` |
| ` + "`name~#new`" + ` | copy | ` + "`Tutor~#Tutor2`" + ` |
| ` + "`name:desc`" + ` | set description | ` + "`Tutor:Go mentor`" + ` |
| ` + "`-#name`" + ` | delete | ` + "`-#Tutor`" + ` |
| ` + "`/#`" + ` | list personas | ` + "`/#`" + ` |

## Configuration
| Command | Effect | Example |
|------|------|------|
| ` + "`name%model`" + ` | change model | ` + "`Tutor%gpt-5`" + ` |
| ` + "`name$prompt`" + ` | change prompt | ` + "`Tutor$You are...`" + ` |
| ` + "`name$`" + ` | clear prompt | ` + "`Tutor$`" + ` |
| ` + "`name/$`" + ` | view prompt | ` + "`Tutor/$`" + ` |
| ` + "`/%`" + ` | model list | ` + "`/%`" + ` |

## Conversation
| Command | Effect |
|------|------|
| ` + "`name text`" + ` | chat |
| ` + "`\"name text`" + ` | chat in text mode |
| ` + "`&name text`" + ` | private chat |
| ` + "`name~`" + ` | regenerate |
| ` + "`name!`" + ` | stop generation |

## History
| Command | Effect |
|------|------|
| ` + "`name/*`" + ` | view all |
| ` + "`name/1`" + ` | view entry 1 |
| ` + "`name/1-5`" + ` | view entries 1-5 |
| ` + "`name_*`" + ` | export (.txt) |
| ` + "`name'1 text`" + ` | edit entry 1 |
| ` + "`name-1`" + ` | delete entry 1 |
| ` + "`name-1,3,5`" + ` | delete several |
| ` + "`name-1-5`" + ` | delete a range |
| ` + "`name-*`" + ` | clear history |

> Prefix with ` + "`&`" + ` to target private history: ` + "`&name/*`" + `

## Dangerous
| Command | Effect |
|------|------|
| ` + "`-*`" + ` | clear every public history |
| ` + "`-*!`" + ` | clear every history |

## API setup
Send a bare message: ` + "`https://api.example.com sk-yourkey`" + `
`
