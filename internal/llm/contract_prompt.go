package llm

import (
	"fmt"
)

// BuildContractPrompt создаёт промпт для генерации контракта схемы
// из пользовательского запроса и образца контента страницы.
func BuildContractPrompt(req *ContractRequest) string {
	return fmt.Sprintf(
		`
Ты — проектировщик схем извлечения данных. По запросу пользователя и образцу
страницы построй контракт: какую сущность извлекаем и какие у неё поля.

### ЗАПРОС ПОЛЬЗОВАТЕЛЯ:
%s

### ОБРАЗЕЦ КОНТЕНТА СТРАНИЦЫ (обрезан):
%s

### ПРАВИЛА:

1. **required — консервативно:** обычно ОДНО идентифицирующее поле (name/title).
   Required-поле без значения роняет всю строку.
2. **expected — щедро:** по одному полю на каждый правдоподобный атрибут
   из запроса. Отсутствие expected-поля строку не роняет.
3. **Типы:** string, richtext, url, email, phone, number, date, enum, array,
   image, boolean. Выбирай самый узкий подходящий.
4. **entity_name:** единственное число, snake_case ("faculty_member", "product").

### ЕСЛИ ДАННЫХ МАЛО:
Если запрос не дает понять, что извлекать, верни abstain = true — ядро
подставит шаблонный контракт.

ПРИМЕР ПРАВИЛЬНОГО ОТВЕТА:
{
    "entity_name": "faculty_member",
    "fields": [
        {"name": "name", "kind": "required", "type": "string"},
        {"name": "title", "kind": "expected", "type": "string"},
        {"name": "email", "kind": "expected", "type": "email"}
    ],
    "abstain": false
}

ОТВЕТ СТРОГО В JSON согласно схеме.
`,
		req.Query,
		truncate(req.ContentSample, 1500),
	)
}
