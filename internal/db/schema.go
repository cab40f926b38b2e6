package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- PROFILE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS profile SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS email ON profile TYPE string;
    DEFINE FIELD IF NOT EXISTS password_hash ON profile TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON profile TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS profile_email ON profile FIELDS email UNIQUE;

    -- ==========================================================================
    -- CHAT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS chat SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user ON chat TYPE record<profile>;
    DEFINE FIELD IF NOT EXISTS title ON chat TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON chat TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON chat TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS chat_user ON chat FIELDS user;
    DEFINE INDEX IF NOT EXISTS chat_updated ON chat FIELDS updated_at;

    -- ==========================================================================
    -- MESSAGE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS chat ON message TYPE record<chat>;
    DEFINE FIELD IF NOT EXISTS role ON message TYPE string ASSERT $value IN ["user", "assistant"];
    DEFINE FIELD IF NOT EXISTS content ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON message TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS message_chat ON message FIELDS chat;
    DEFINE INDEX IF NOT EXISTS message_created ON message FIELDS created_at;

    -- ==========================================================================
    -- ATTACHMENT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS attachment SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS message ON attachment TYPE record<message>;
    DEFINE FIELD IF NOT EXISTS file_name ON attachment TYPE string;
    DEFINE FIELD IF NOT EXISTS file_type ON attachment TYPE string;
    DEFINE FIELD IF NOT EXISTS file_url ON attachment TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON attachment TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS attachment_message ON attachment FIELDS message;
`
