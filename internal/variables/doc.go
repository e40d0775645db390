// Package variables реализует разрешение переменных конфигурации
// редукции.
//
// Структура:
//   - value.go     — тип-сумма значения переменной (text/integer/float/
//     boolean/list) с явной сериализацией в текст и обратно
//   - arguments.go — слияние значений по умолчанию из скрипта с переопределениями
//     пользователя (приведение к типу, установленному скриптом)
//   - resolver.go  — чистый алгоритм выбора/версионирования строк
//     InstrumentVariable (приоритет эксперимента, copy-on-write)
//   - service.go   — применение плана через хранилище и создание
//     снимка RunVariable для run
//
// Приоритет при разрешении:
//  1. Переменная, привязанная к эксперименту run — всегда побеждает.
//  2. Иначе — переменная с наибольшим start_run, не превышающим
//     номер run.
//  3. Иначе создаётся новая строка из эффективного значения.
package variables
